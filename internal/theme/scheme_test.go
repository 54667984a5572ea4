package theme

import (
	"reflect"
	"testing"
)

func TestNotifySchemeSubscriptionOrder(t *testing.T) {
	src := NewNotifyScheme(SchemeDark)

	var seen []string
	cancels := make(map[string]func())
	for _, tag := range []string{"first", "second", "third"} {
		tag := tag
		cancels[tag] = src.Subscribe(func(Scheme) { seen = append(seen, tag) })
	}

	src.Set(SchemeLight)
	if want := []string{"first", "second", "third"}; !reflect.DeepEqual(seen, want) {
		t.Errorf("order = %v, want %v", seen, want)
	}

	// Cancelling a middle subscriber keeps the others in order.
	cancels["second"]()
	seen = nil
	src.Set(SchemeDark)
	if want := []string{"first", "third"}; !reflect.DeepEqual(seen, want) {
		t.Errorf("order after cancel = %v, want %v", seen, want)
	}

	// Same scheme again is a no-op.
	seen = nil
	src.Set(SchemeDark)
	if len(seen) != 0 {
		t.Errorf("redundant Set notified %v", seen)
	}
}
