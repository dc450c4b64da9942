package imap

import "strings"

// bodyPart is one leaf of a BODYSTRUCTURE tree.
type bodyPart struct {
	ctype       string
	subtype     string
	disposition string
}

func (p bodyPart) isSignature() bool {
	switch p.subtype {
	case "pkcs7-signature", "x-pkcs7-signature", "pgp-signature", "pkcs7-mime":
		return true
	}
	return false
}

// HasAttachment reports whether a BODYSTRUCTURE describes a message with
// a real, user-visible attachment. raw is the text between the outer
// parens of the BODYSTRUCTURE value. Classification rules, in priority
// order:
//
//   - an explicit "attachment" disposition is positive, except on S/MIME
//     and PGP signature parts, which exist on every signed message and
//     say nothing about attachments
//   - any application/* part outside the signature list is positive even
//     without a disposition
//   - audio/* and video/* parts are always positive
//   - image/* without an attachment disposition is treated as inline
//   - text/* is positive only with an explicit attachment disposition
//
// An empty or absent structure yields false.
func HasAttachment(raw string) bool {
	parts := collectBodyParts(raw)
	for _, p := range parts {
		if p.isSignature() {
			continue
		}
		switch {
		case p.disposition == "attachment":
			return true
		case p.ctype == "application":
			return true
		case p.ctype == "audio", p.ctype == "video":
			return true
		}
	}
	return false
}

// collectBodyParts flattens a BODYSTRUCTURE into its leaf parts. raw is
// the content of one part group. A multipart group starts with a nested
// group per child followed by the multipart subtype; a leaf starts with
// two strings, type and subtype, with an optional disposition group
// among the trailing extension fields.
func collectBodyParts(raw string) []bodyPart {
	p := newScanner(raw)
	p.skipSpace()
	if p.eof() {
		return nil
	}

	if p.peek() == '(' {
		// Multipart: children until the first non-group value.
		var parts []bodyPart
		for {
			p.skipSpace()
			if p.eof() || p.peek() != '(' {
				break
			}
			inner, err := p.readGroup()
			if err != nil {
				return parts
			}
			parts = append(parts, collectBodyParts(inner)...)
		}
		return parts
	}

	part, ok := parseLeafPart(p)
	if !ok {
		return nil
	}
	return []bodyPart{part}
}

// parseLeafPart reads one non-multipart body part. Only the media type
// and the disposition matter here; everything between them (params, id,
// description, encoding, size, lines, md5) is consumed and discarded.
func parseLeafPart(p *scanner) (bodyPart, bool) {
	ctypeVal, err := p.readValue()
	if err != nil {
		return bodyPart{}, false
	}
	subtypeVal, err := p.readValue()
	if err != nil {
		return bodyPart{}, false
	}
	part := bodyPart{
		ctype:   strings.ToLower(ctypeVal.str()),
		subtype: strings.ToLower(subtypeVal.str()),
	}

	for {
		p.skipSpace()
		if p.eof() {
			break
		}
		v, err := p.readValue()
		if err != nil {
			break
		}
		if v.kind != vGroup {
			continue
		}
		if d, ok := parseDisposition(v.val); ok {
			part.disposition = d
			break
		}
	}
	return part, true
}

// parseDisposition recognizes a disposition group, whose first value is
// the disposition token, e.g. ("attachment" ("filename" "report.pdf")).
// Parameter lists and nested structures also appear as groups in the
// extension fields; only a group leading with attachment/inline counts.
func parseDisposition(raw string) (string, bool) {
	q := newScanner(raw)
	v, err := q.readValue()
	if err != nil || (v.kind != vQuoted && v.kind != vAtom) {
		return "", false
	}
	token := strings.ToLower(v.val)
	if token == "attachment" || token == "inline" {
		return token, true
	}
	return "", false
}
