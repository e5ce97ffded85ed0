package utils

import (
	"bytes"
	"encoding/json"
)

// PrettyJson indenta um payload para logs de depuração. Aceita tanto um
// corpo bruto quanto um valor serializável
func PrettyJson(in any) string {
	raw, ok := in.([]byte)
	if !ok {
		var err error
		raw, err = json.Marshal(in)
		if err != nil {
			return ""
		}
	}

	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "\t"); err != nil {
		return string(raw)
	}

	return out.String()
}
