package config

import (
	"encoding"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envOverridePrefix prefixes the environment variables that override file
// values: PARLEY_MODEL, PARLEY_RETRY_MAX_ATTEMPTS, and so on, derived from
// the yaml tags.
const envOverridePrefix = "PARLEY"

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads a YAML configuration file. ${VAR} placeholders are substituted
// from the environment before parsing, PARLEY_* variables override parsed
// values afterwards, and keys absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to pure defaults
// (still subject to PARLEY_* overrides) when it does not. Other read errors
// still fail.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return Parse(nil)
	}
	return cfg, err
}

// Parse loads configuration from raw YAML bytes. See Load.
func Parse(data []byte) (*Config, error) {
	text := envVarPattern.ReplaceAllStringFunc(string(data), func(match string) string {
		if value := os.Getenv(match[2 : len(match)-1]); value != "" {
			return value
		}
		return match // leave unresolved placeholders visible
	})

	cfg := Default()
	if err := yaml.Unmarshal([]byte(text), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyEnvOverrides(reflect.ValueOf(cfg).Elem(), envOverridePrefix)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides walks the struct's yaml tags and overrides each field
// from PREFIX_FIELD when that environment variable is set. Nested sections
// extend the prefix with their tag.
func applyEnvOverrides(v reflect.Value, prefix string) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("yaml")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		envKey := prefix + "_" + strings.ToUpper(name)

		if field.Kind() == reflect.Struct {
			applyEnvOverrides(field, envKey)
			continue
		}
		if value := os.Getenv(envKey); value != "" {
			setFieldFromEnv(field, value)
		}
	}
}

// setFieldFromEnv parses value into the field's type. Unparseable values
// leave the field untouched rather than failing the load.
func setFieldFromEnv(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}
	if field.CanAddr() {
		if u, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
			_ = u.UnmarshalText([]byte(value))
			return
		}
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int64:
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(n)
		}
	case reflect.Uint, reflect.Uint64:
		if n, err := strconv.ParseUint(value, 10, 64); err == nil {
			field.SetUint(n)
		}
	case reflect.Float64:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			field.SetFloat(f)
		}
	case reflect.Pointer:
		if field.Type().Elem().Kind() == reflect.Float64 {
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				field.Set(reflect.ValueOf(&f))
			}
		}
	}
}
