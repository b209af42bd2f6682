package wisdomcard

import (
	"reflect"
	"testing"

	"tools.zach/dev/wisdomcard/internal/config"
)

func TestDefaultConfigTOMLMatchesDefaults(t *testing.T) {
	cfg, err := config.Parse(DefaultConfigTOML)
	if err != nil {
		t.Fatalf("embedded config.default.toml does not parse: %v", err)
	}
	if want := config.DefaultConfig(); !reflect.DeepEqual(cfg, want) {
		t.Errorf("embedded defaults drifted from DefaultConfig()\n got: %+v\nwant: %+v", cfg, want)
	}
}
