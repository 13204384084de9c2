package config

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"k8s.io/apimachinery/pkg/api/resource"
)

// QuantityDecodeHook parses strings and numbers into resource.Quantity.
func QuantityDecodeHook() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if t != reflect.TypeOf(resource.Quantity{}) || f == t {
			return data, nil
		}
		q, err := resource.ParseQuantity(fmt.Sprintf("%v", data))
		if err != nil {
			return nil, fmt.Errorf("invalid quantity %v: %w", data, err)
		}
		return q, nil
	}
}
