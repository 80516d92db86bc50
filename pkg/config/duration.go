package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration 是一个"可读"的 duration 类型：
// - YAML 支持字符串（例如 "5s", "500ms"）
// - 也支持数字（整数），按"秒"解释（兼容简写）
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("unsupported duration node: kind=%d value=%q", value.Kind, value.Value)
	}

	s := strings.TrimSpace(value.Value)
	switch value.Tag {
	case "!!str":
		if s == "" {
			d.Duration = 0
			return nil
		}
		dd, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		d.Duration = dd
		return nil
	case "!!int":
		secs, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid duration seconds %q: %w", s, err)
		}
		d.Duration = time.Duration(secs) * time.Second
		return nil
	case "!!float":
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid duration seconds %q: %w", s, err)
		}
		d.Duration = time.Duration(f * float64(time.Second))
		return nil
	}
	return fmt.Errorf("unsupported duration tag: %s", value.Tag)
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}
