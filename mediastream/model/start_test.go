package model_test

import (
	"encoding/json"
	"testing"

	"github.com/m-lab/go/testingx"

	"github.com/voiceops/streamprobe/mediastream/model"
)

// The field names and nesting of the start message are normative: a
// compatible endpoint matches them byte for byte.
func TestStartWireFormat(t *testing.T) {
	start := model.NewStart("VM_TEST_123", "AC_TEST_123", "CA_TEST_123",
		[]string{"inbound"}, map[string]string{"From": "+17138552377"})
	data, err := json.Marshal(&start)
	testingx.Must(t, err, "failed to marshal start message")
	want := `{"event":"start","streamSid":"VM_TEST_123",` +
		`"start":{"streamSid":"VM_TEST_123","accountSid":"AC_TEST_123",` +
		`"callSid":"CA_TEST_123","tracks":["inbound"],` +
		`"customParameters":{"From":"+17138552377"}}}`
	if string(data) != want {
		t.Errorf("serialized start message:\ngot  %s\nwant %s", data, want)
	}
}
