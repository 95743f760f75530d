package modelcat

import "testing"

func TestResolve_Known(t *testing.T) {
	info := Resolve("gpt-4o")
	if info.Provider != "openai" || info.Canonical != "gpt-4o" {
		t.Errorf("Resolve(gpt-4o) = %+v", info)
	}
	if info.Temperature != nil {
		t.Errorf("gpt-4o Temperature = %v, want nil (provider default)", *info.Temperature)
	}
}

func TestResolve_TemperaturePinned(t *testing.T) {
	for _, model := range []string{"gpt-5", "o1", "o3", "o4-mini"} {
		info := Resolve(model)
		if info.Temperature == nil {
			t.Errorf("%s: Temperature = nil, want pinned", model)
			continue
		}
		if *info.Temperature != 1.0 {
			t.Errorf("%s: Temperature = %v, want 1.0", model, *info.Temperature)
		}
	}
}

func TestResolve_ProviderPrefixStripped(t *testing.T) {
	info := Resolve("anthropic/claude-sonnet-4")
	if info.Provider != "anthropic" || info.Canonical != "claude-sonnet-4" {
		t.Errorf("Resolve = %+v", info)
	}
}

func TestResolve_UnknownFallsBack(t *testing.T) {
	info := Resolve("made-up-model")
	if info.Canonical != DefaultModel {
		t.Errorf("Resolve(made-up-model).Canonical = %q, want %q", info.Canonical, DefaultModel)
	}
	if Known("made-up-model") {
		t.Error("Known(made-up-model) = true, want false")
	}
	if !Known("GPT-4o") {
		t.Error("Known(GPT-4o) = false, want true (case-insensitive)")
	}
}
