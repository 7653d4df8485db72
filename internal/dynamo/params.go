package dynamo

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ApplyParams sets every name=value assignment on c. All assignments are
// attempted and the failures are returned together.
func ApplyParams(c Configurable, assignments []string) error {
	var result *multierror.Error
	for _, a := range assignments {
		name, raw, ok := strings.Cut(a, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			result = multierror.Append(result, fmt.Errorf("%w: %q is not name=value", ErrUnknownParameter, a))
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%w: %s: %v", ErrParameterBounds, name, err))
			continue
		}
		if err := c.SetParam(name, value); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// ParamNames lists the parameters of c in order.
func ParamNames(c Configurable) []string {
	params := c.GetParams()
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
