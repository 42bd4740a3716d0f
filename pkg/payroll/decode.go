package payroll

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// FieldError is one problem found while decoding a commit payload.
// Index is -1 for problems with the document as a whole.
type FieldError struct {
	Index int
	Field string
	Msg   string
}

func (f FieldError) String() string {
	if f.Index < 0 {
		return f.Msg
	}
	return fmt.Sprintf("items[%d].%s: %s", f.Index, f.Field, f.Msg)
}

// DecodeError lists every problem found in a commit payload.
type DecodeError struct {
	Problems []FieldError
}

func (e *DecodeError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return "invalid commit payload: " + strings.Join(parts, "; ")
}

type rawCommitItem struct {
	Wallet           *string `json:"wallet"`
	NetCiphertextB64 *string `json:"net_ciphertext_b64"`
	EncryptedRef     *string `json:"encrypted_ref"`
}

// DecodeCommitItems parses a commit payload. Both a bare JSON array of items
// and an object of the form {"items": [...]} are accepted. Every item is
// checked; the returned *DecodeError carries all problems, not just the
// first. Wallets are normalised to lowercase and a missing encrypted_ref
// becomes ZeroRef.
func DecodeCommitItems(raw []byte) ([]CommitItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, &DecodeError{Problems: []FieldError{{Index: -1, Msg: "payload is empty"}}}
	}

	var rawItems []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &rawItems); err != nil {
			return nil, &DecodeError{Problems: []FieldError{{Index: -1, Msg: "malformed JSON: " + err.Error()}}}
		}
	case '{':
		var wrapper struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, &DecodeError{Problems: []FieldError{{Index: -1, Msg: "malformed JSON: " + err.Error()}}}
		}
		if wrapper.Items == nil {
			return nil, &DecodeError{Problems: []FieldError{{Index: -1, Msg: `object payload must have an "items" array`}}}
		}
		rawItems = wrapper.Items
	default:
		return nil, &DecodeError{Problems: []FieldError{{Index: -1, Msg: "payload must be a JSON array of items"}}}
	}

	if len(rawItems) == 0 {
		return nil, &DecodeError{Problems: []FieldError{{Index: -1, Msg: "at least one item is required"}}}
	}

	var problems []FieldError
	add := func(i int, field, msg string) {
		problems = append(problems, FieldError{Index: i, Field: field, Msg: msg})
	}

	items := make([]CommitItem, 0, len(rawItems))
	seen := make(map[string]int, len(rawItems))

	for i, r := range rawItems {
		var ri rawCommitItem
		if err := json.Unmarshal(r, &ri); err != nil {
			add(i, "", "not a valid item: "+err.Error())
			continue
		}

		var item CommitItem

		switch {
		case ri.Wallet == nil || strings.TrimSpace(*ri.Wallet) == "":
			add(i, "wallet", "required")
		default:
			w, err := NormalizeWallet(*ri.Wallet)
			if err != nil {
				add(i, "wallet", "must be 0x followed by 40 hex characters")
				break
			}
			if prev, dup := seen[w]; dup {
				add(i, "wallet", fmt.Sprintf("duplicate of items[%d]", prev))
				break
			}
			seen[w] = i
			item.Wallet = w
		}

		switch {
		case ri.NetCiphertextB64 == nil || *ri.NetCiphertextB64 == "":
			add(i, "net_ciphertext_b64", "required")
		default:
			if _, err := base64.StdEncoding.Strict().DecodeString(*ri.NetCiphertextB64); err != nil {
				add(i, "net_ciphertext_b64", "must be standard base64")
				break
			}
			item.NetCiphertextB64 = *ri.NetCiphertextB64
		}

		switch {
		case ri.EncryptedRef == nil || *ri.EncryptedRef == "":
			item.EncryptedRef = ZeroRef
		case !IsBytes32(*ri.EncryptedRef):
			add(i, "encrypted_ref", "must be 0x followed by 64 hex characters")
		default:
			item.EncryptedRef = strings.ToLower(*ri.EncryptedRef)
		}

		items = append(items, item)
	}

	if len(problems) > 0 {
		return nil, &DecodeError{Problems: problems}
	}
	return items, nil
}
