package assets

import (
	"strings"
	"testing"
)

func TestRestorationInstruction(t *testing.T) {
	got := RestorationInstruction()
	if got == "" {
		t.Fatal("restoration instruction is empty")
	}
	if strings.HasSuffix(got, "\n") {
		t.Error("restoration instruction keeps trailing newline")
	}
	if !strings.Contains(got, "Restaura esta fotografía antigua") {
		t.Errorf("unexpected instruction text: %q", got)
	}
}
