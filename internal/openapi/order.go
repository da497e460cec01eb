package openapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// KeyOrder records, for every JSON object in a document, its keys in the
// order they were written. kin-openapi keeps paths, properties and content
// maps in Go maps, so declaration order has to be recovered from the raw
// bytes.
type KeyOrder map[string][]string

func indexKeyOrder(data []byte) (KeyOrder, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	order := KeyOrder{}
	if err := walkJSON(dec, "#", order); err != nil {
		return nil, err
	}
	return order, nil
}

func walkJSON(dec *json.Decoder, ptr string, order KeyOrder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil
	}
	switch delim {
	case '{':
		var keys []string
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return err
			}
			key, ok := kt.(string)
			if !ok {
				return fmt.Errorf("unexpected object key %v at %s", kt, ptr)
			}
			keys = append(keys, key)
			if err := walkJSON(dec, ptr+"/"+EscapePointer(key), order); err != nil {
				return err
			}
		}
		order[ptr] = keys
	case '[':
		for i := 0; dec.More(); i++ {
			if err := walkJSON(dec, ptr+"/"+strconv.Itoa(i), order); err != nil {
				return err
			}
		}
	}
	// closing delimiter
	_, err = dec.Token()
	return err
}

// Keys returns the recorded key order of the object at ptr.
func (o KeyOrder) Keys(ptr string) []string {
	if o == nil {
		return nil
	}
	return o[ptr]
}

// Sort orders keys by their position in the object at ptr. Keys the index
// does not know about (documents built in code) follow in lexical order.
func (o KeyOrder) Sort(ptr string, keys []string) []string {
	pos := map[string]int{}
	for i, k := range o.Keys(ptr) {
		if _, seen := pos[k]; !seen {
			pos[k] = i
		}
	}
	out := append([]string(nil), keys...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, iok := pos[out[i]]
		pj, jok := pos[out[j]]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// EscapePointer escapes one JSON pointer reference token.
func EscapePointer(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}

// UnescapePointer reverses EscapePointer.
func UnescapePointer(token string) string {
	token = strings.ReplaceAll(token, "~1", "/")
	return strings.ReplaceAll(token, "~0", "~")
}
