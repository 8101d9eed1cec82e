package config

import (
	"fmt"
	"os"

	"github.com/F1H444/si-kalori-sub000/utils"

	"gopkg.in/yaml.v3"
)

// LoadCalculator returns the default calculator when path is empty, otherwise the
// tables from the YAML file layered over the defaults.
func LoadCalculator(path string) (*utils.Calculator, error) {
	cfg := utils.DefaultCalculatorConfig()
	if path == "" {
		return utils.NewCalculator(cfg)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calculator config: %w", err)
	}
	return parseCalculator(raw, cfg)
}

func parseCalculator(raw []byte, base utils.CalculatorConfig) (*utils.Calculator, error) {
	var file struct {
		ActivityMultipliers map[utils.ActivityLevel]float64 `yaml:"activity_multipliers"`
		GoalOffsets         map[utils.Goal]float64          `yaml:"goal_offsets"`
		MinCalories         *float64                        `yaml:"min_calories"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse calculator config: %w", err)
	}
	for k, v := range file.ActivityMultipliers {
		base.ActivityMultipliers[k] = v
	}
	for k, v := range file.GoalOffsets {
		base.GoalOffsets[k] = v
	}
	if file.MinCalories != nil {
		base.MinCalories = *file.MinCalories
	}
	return utils.NewCalculator(base)
}
