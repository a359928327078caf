// filter.go
package convert

import (
	"fmt"

	"github.com/apibridge/mcp-bridge/pkg/mcp"
)

// FilterOptions narrows the exposed tool set by operation id and/or tag.
// Include and exclude of the same dimension are mutually exclusive; the two
// dimensions combine additively when both are include-style.
type FilterOptions struct {
	IncludeOperations []string
	ExcludeOperations []string
	IncludeTags       []string
	ExcludeTags       []string
}

// Validate rejects conflicting option pairs. This is a configuration error
// raised before any conversion or filtering takes place.
func (o FilterOptions) Validate() error {
	if o.IncludeOperations != nil && o.ExcludeOperations != nil {
		return fmt.Errorf("cannot specify both IncludeOperations and ExcludeOperations")
	}
	if o.IncludeTags != nil && o.ExcludeTags != nil {
		return fmt.Errorf("cannot specify both IncludeTags and ExcludeTags")
	}
	return nil
}

// IsZero reports whether no filtering rule is set, in which case the filter
// is an identity.
func (o FilterOptions) IsZero() bool {
	return o.IncludeOperations == nil && o.ExcludeOperations == nil &&
		o.IncludeTags == nil && o.ExcludeTags == nil
}

// FilterTools prunes the tool list and the operation map down to the target
// set selected by opts. The operation map is mutated in place: the filtered
// view replaces the full view, and excluded operations are gone for good.
// The returned slice preserves the original tool order.
func FilterTools(tools []mcp.Tool, ops OperationMap, opts FilterOptions) ([]mcp.Tool, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.IsZero() {
		return tools, nil
	}

	keep := make(map[string]bool)

	// Operation-id dimension.
	if opts.IncludeOperations != nil {
		for _, name := range opts.IncludeOperations {
			keep[name] = true
		}
	} else if opts.ExcludeOperations != nil {
		excluded := make(map[string]bool, len(opts.ExcludeOperations))
		for _, name := range opts.ExcludeOperations {
			excluded[name] = true
		}
		for name := range ops {
			if !excluded[name] {
				keep[name] = true
			}
		}
	}

	// Tag dimension, unioned with the above.
	if opts.IncludeTags != nil {
		wanted := make(map[string]bool, len(opts.IncludeTags))
		for _, tag := range opts.IncludeTags {
			wanted[tag] = true
		}
		for name, op := range ops {
			for _, tag := range op.Tags {
				if wanted[tag] {
					keep[name] = true
					break
				}
			}
		}
	} else if opts.ExcludeTags != nil {
		unwanted := make(map[string]bool, len(opts.ExcludeTags))
		for _, tag := range opts.ExcludeTags {
			unwanted[tag] = true
		}
		for name, op := range ops {
			tagged := false
			for _, tag := range op.Tags {
				if unwanted[tag] {
					tagged = true
					break
				}
			}
			if !tagged {
				keep[name] = true
			}
		}
	}

	filtered := make([]mcp.Tool, 0, len(tools))
	for _, tool := range tools {
		if keep[tool.Name] {
			filtered = append(filtered, tool)
		}
	}
	for name := range ops {
		if !keep[name] {
			delete(ops, name)
		}
	}
	return filtered, nil
}
