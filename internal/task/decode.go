package task

import "encoding/json"

// DecodeConfig maps an opaque config record onto a typed struct. Decoding
// is loose: unknown keys are the task's business, not the engine's.
func DecodeConfig(cfg Config, out any) error {
	if cfg == nil {
		return nil
	}
	b, err := json.Marshal(map[string]any(cfg))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
