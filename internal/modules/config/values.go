package config

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Values — плоский конфиг стратегии (common + секция стратегии).
// Ключи в нижнем регистре, как их отдаёт viper.
type Values map[string]any

// Require — жёсткая проверка обязательных ключей при создании стратегии.
func (v Values) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if _, ok := v[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required config keys: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (v Values) Float(key string, def float64) float64 {
	switch x := v[key].(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f
		}
	}
	return def
}

func (v Values) Int(key string, def int) int {
	switch x := v[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	case string:
		if n, err := strconv.Atoi(x); err == nil {
			return n
		}
	}
	return def
}

func (v Values) String(key, def string) string {
	if s, ok := v[key].(string); ok && s != "" {
		return s
	}
	return def
}

func (v Values) Bool(key string, def bool) bool {
	switch x := v[key].(type) {
	case bool:
		return x
	case string:
		if x == "1" || strings.EqualFold(x, "true") {
			return true
		}
		if x == "0" || strings.EqualFold(x, "false") {
			return false
		}
	}
	return def
}

// Merge — копия v с наложенными поверх значениями из over.
func (v Values) Merge(over Values) Values {
	out := make(Values, len(v)+len(over))
	for k, val := range v {
		out[k] = val
	}
	for k, val := range over {
		out[k] = val
	}
	return out
}
