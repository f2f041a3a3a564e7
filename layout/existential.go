package layout

import "reflect"

func deepEqualAny(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
