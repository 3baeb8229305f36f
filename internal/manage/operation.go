package manage

import "fmt"

// Operation names an administrative operation.
type Operation int

const (
	OpCreate Operation = iota + 1
	OpRemove
	OpReload
	OpSave
	OpReadAlias
	OpListAliases
	OpDeleteAlias
	OpPutAlias
	OpReconfigure
	OpState
)

var operationNames = map[Operation]string{
	OpCreate:      "create",
	OpRemove:      "remove",
	OpReload:      "reload",
	OpSave:        "save",
	OpReadAlias:   "read-alias",
	OpListAliases: "list-aliases",
	OpDeleteAlias: "delete-alias",
	OpPutAlias:    "put-alias",
	OpReconfigure: "reconfigure",
	OpState:       "state",
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

// ParseOperation is the inverse of Operation.String.
func ParseOperation(s string) (Operation, error) {
	for op, name := range operationNames {
		if name == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown operation %q", ErrInvalidRequest, s)
}
