package app

import (
	"encoding/hex"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Bytes - raw byte sequence in the config, either a list of numbers
// (`[129, 1, 126, 255]`, the historical JSON form) or a hex string
// (`"81 01 7E FF"`).
type Bytes []byte

func (b *Bytes) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var raw []int
		if err := node.Decode(&raw); err != nil {
			return err
		}
		out := make([]byte, len(raw))
		for i, v := range raw {
			if v < 0 || v > 0xFF {
				return fmt.Errorf("config: byte value %d out of range", v)
			}
			out[i] = byte(v)
		}
		*b = out
		return nil

	case yaml.ScalarNode:
		s := strings.NewReplacer(" ", "", ":", "").Replace(node.Value)
		out, err := hex.DecodeString(s)
		if err != nil {
			return fmt.Errorf("config: bad hex string %q: %w", node.Value, err)
		}
		*b = out
		return nil
	}

	return fmt.Errorf("config: expected byte list or hex string")
}
