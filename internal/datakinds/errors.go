package datakinds

import "fmt"

type errWrongItemType struct {
	kind string
	item interface{}
}

func (e errWrongItemType) Error() string {
	return fmt.Sprintf("cannot serialize %T as %s", e.item, e.kind)
}
