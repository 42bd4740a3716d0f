package psdk

import (
	"fmt"
	"strings"

	"github.com/oapi-codegen/runtime"
)

// buildPath fills {name} placeholders in tmpl using simple path styling, the
// same encoding generated OpenAPI clients apply to path parameters.
func buildPath(tmpl string, params ...pathParam) (string, error) {
	out := tmpl
	for _, p := range params {
		v, err := runtime.StyleParamWithLocation("simple", false, p.name, runtime.ParamLocationPath, p.value)
		if err != nil {
			return "", fmt.Errorf("invalid format for parameter %s: %w", p.name, err)
		}
		placeholder := "{" + p.name + "}"
		if !strings.Contains(out, placeholder) {
			return "", fmt.Errorf("path %s has no parameter %s", tmpl, p.name)
		}
		out = strings.Replace(out, placeholder, v, 1)
	}
	if strings.Contains(out, "{") {
		return "", fmt.Errorf("path %s has unfilled parameters", tmpl)
	}
	return out, nil
}

type pathParam struct {
	name  string
	value any
}

func param(name string, value any) pathParam {
	return pathParam{name: name, value: value}
}
