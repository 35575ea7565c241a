package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"testing"
)

func TestSetup_JSONShape(t *testing.T) {
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	var buf bytes.Buffer
	logger := setup(&buf, "yield-api", "test")
	logger.Info("payment applied", "agreement_id", 7)

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("not json: %v (%s)", err, buf.String())
	}
	for key, want := range map[string]any{
		"severity": "INFO",
		"message":  "payment applied",
		"service":  "yield-api",
		"env":      "test",
	} {
		if line[key] != want {
			t.Errorf("%s = %v, want %v", key, line[key], want)
		}
	}
	if _, ok := line["timestamp"]; !ok {
		t.Errorf("missing timestamp: %v", line)
	}
}
