package container

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadEnvOptions reads Options from the environment, after loading a local .env
// file when one exists. Variables are named after the mapstructure keys in upper
// case, e.g. REDIS_ADDR. Unset options keep their default tag value.
func LoadEnvOptions() (*Options, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env file: %w", err)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, reflect.TypeOf(Options{}))

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}

	return &opts, nil
}

func setDefaults(v *viper.Viper, t reflect.Type) {
	for i := range t.NumField() {
		field := t.Field(i)

		key := field.Tag.Get("mapstructure")
		if key == "" {
			continue
		}

		v.SetDefault(key, field.Tag.Get("default"))
	}
}
