// Package janitor implements spec.md §4.6: a second control channel whose
// sole purpose is binding a client process's pid to a connection, and
// reacting to that connection's close by decrementing every ResourceRef the
// pid still owns. It is deliberately a much smaller protocol than
// internal/controlproto: one command, one event (disconnect).
package janitor

import "encoding/json"

// registerFrame is the only message a janitor client ever sends: its pid,
// immediately after opening the channel (spec.md §4.6).
type registerFrame struct {
	PID int32 `json:"pid"`
}

func encodeRegister(pid int32) ([]byte, error) {
	return json.Marshal(registerFrame{PID: pid})
}

func decodeRegister(b []byte) (int32, error) {
	var f registerFrame
	if err := json.Unmarshal(b, &f); err != nil {
		return 0, err
	}
	return f.PID, nil
}
