package config_test

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/labkit/databox/pkg/config"
)

// ExampleDefault shows the values used when no configuration file is given.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Pad token: %s\n", cfg.Save.PadToken)
	fmt.Printf("Max depth: %d\n", cfg.Script.MaxDepth)
	fmt.Printf("Valid: %v\n", cfg.Validate() == nil)

	// Output:
	// Pad token: nan
	// Max depth: 1000
	// Valid: true
}

// ExampleConfig_Validate demonstrates configuration validation.
func ExampleConfig_Validate() {
	cfg := config.Default()
	cfg.Save.Binary = "float128"

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Validation error: %v\n", err)
	}

	// Output:
	// Validation error: save.binary must be float16, float32 or float64, got "float128"
}

// ExampleLoadFile demonstrates loading YAML with environment substitution.
func ExampleLoadFile() {
	dir, _ := os.MkdirTemp("", "databox-config")
	defer os.RemoveAll(dir)

	os.Setenv("DATABOX_EXAMPLE_BINARY", "float32")
	defer os.Unsetenv("DATABOX_EXAMPLE_BINARY")

	path := filepath.Join(dir, "databox.yaml")
	yaml := `
save:
  binary: ${DATABOX_EXAMPLE_BINARY}
  pad_token: "_"
legacy:
  column_renames:
    Vx: voltage_x
`
	_ = os.WriteFile(path, []byte(yaml), 0o600)

	cfg, err := config.LoadFile(path)
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Printf("Binary: %s\n", cfg.Save.Binary)
	fmt.Printf("Pad token: %s\n", cfg.Save.PadToken)
	fmt.Printf("Vx -> %s\n", cfg.Legacy.ColumnRenames["Vx"])
	fmt.Printf("Max depth kept: %d\n", cfg.Script.MaxDepth)

	// Output:
	// Binary: float32
	// Pad token: _
	// Vx -> voltage_x
	// Max depth kept: 1000
}
