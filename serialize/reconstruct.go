package serialize

import (
	"bytes"
	"encoding/json"

	siop "github.com/njones/sioclient/protocol"
)

var placeholderKey = []byte(`"_placeholder"`)

// Reconstruct decodes raw and puts the attachments back in place of their
// placeholders. Objects come back as map[string]interface{}, numbers as
// json.Number and attachments as []byte.
func Reconstruct(raw json.RawMessage, bin [][]byte) (interface{}, error) {
	var tree interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&tree); err != nil {
		return nil, siop.ErrInvalidPayload.F(err.Error())
	}
	return replacePlaceholders(tree, bin)
}

// Unmarshal decodes one argument into v. A *interface{} gets the tree from
// Reconstruct; any other target goes through encoding/json, so []byte fields
// are filled from the attachments.
func Unmarshal(raw json.RawMessage, bin [][]byte, v interface{}) error {
	if p, ok := v.(*interface{}); ok {
		tree, err := Reconstruct(raw, bin)
		if err != nil {
			return err
		}
		*p = tree
		return nil
	}

	if !bytes.Contains(raw, placeholderKey) {
		return json.Unmarshal(raw, v)
	}

	tree, err := Reconstruct(raw, bin)
	if err != nil {
		return err
	}
	b, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// CheckPlaceholders fails when an argument points at an attachment that
// does not exist.
func CheckPlaceholders(args []json.RawMessage, n int) error {
	bin := make([][]byte, n)
	for _, arg := range args {
		if !bytes.Contains(arg, placeholderKey) {
			continue
		}
		if _, err := Reconstruct(arg, bin); err != nil {
			return err
		}
	}
	return nil
}

func replacePlaceholders(v interface{}, bin [][]byte) (interface{}, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		if num, ok := placeholderNum(val); ok {
			if num < 0 || num >= len(bin) {
				return nil, siop.ErrPlaceholderOutOfRange.F(num, len(bin))
			}
			return bin[num], nil
		}
		for k, item := range val {
			r, err := replacePlaceholders(item, bin)
			if err != nil {
				return nil, err
			}
			val[k] = r
		}
	case []interface{}:
		for i, item := range val {
			r, err := replacePlaceholders(item, bin)
			if err != nil {
				return nil, err
			}
			val[i] = r
		}
	}
	return v, nil
}

func placeholderNum(m map[string]interface{}) (int, bool) {
	if is, _ := m["_placeholder"].(bool); !is {
		return 0, false
	}
	switch num := m["num"].(type) {
	case json.Number:
		i, err := num.Int64()
		return int(i), err == nil
	case float64:
		return int(num), num == float64(int(num))
	case int64:
		return int(num), true
	case int:
		return num, true
	}
	return 0, false
}
