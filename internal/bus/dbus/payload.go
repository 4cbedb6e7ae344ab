package dbus

import (
	"fmt"
	"sort"

	godbus "github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/prabalesh/hostbus/internal/bus"
	"github.com/prabalesh/hostbus/internal/models"
)

// kindAnnotation records which event kind a signal carries in the
// introspection data.
const kindAnnotation = "org.mechanix.hostbus.EventKind"

// toVariants converts a payload to the a{sv} dictionary sent on the wire.
// D-Bus has no single precision float, so float32 widens to a double.
func toVariants(p models.Payload) (map[string]godbus.Variant, error) {
	dict := make(map[string]godbus.Variant, len(p))
	for k, v := range p {
		switch val := v.(type) {
		case float32:
			dict[k] = godbus.MakeVariant(float64(val))
		case string, bool, float64, uint64, int64, uint32, int32, uint16, int16, byte:
			dict[k] = godbus.MakeVariant(val)
		default:
			return nil, fmt.Errorf("field %q: unsupported type %T", k, v)
		}
	}
	return dict, nil
}

func fromVariants(dict map[string]godbus.Variant) models.Payload {
	p := make(models.Payload, len(dict))
	for k, v := range dict {
		p[k] = v.Value()
	}
	return p
}

// bodyPayload extracts the payload from a signal body, which must be a
// single a{sv} argument.
func bodyPayload(body []interface{}) (models.Payload, error) {
	if len(body) == 1 {
		if dict, ok := body[0].(map[string]godbus.Variant); ok {
			return fromVariants(dict), nil
		}
	}
	return nil, &models.DecodeError{
		Reason: fmt.Sprintf("signal body has signature %q, want \"a{sv}\"", godbus.SignatureOf(body...).String()),
	}
}

// introspectInterface describes the methods and signals of obj.
func introspectInterface(obj bus.Object) introspect.Interface {
	iface := introspect.Interface{Name: obj.Interface}

	methods := make([]string, 0, len(obj.Methods))
	for name := range obj.Methods {
		methods = append(methods, name)
	}
	sort.Strings(methods)
	for _, name := range methods {
		iface.Methods = append(iface.Methods, introspect.Method{
			Name: name,
			Args: []introspect.Arg{
				{Name: "name", Type: "s", Direction: "in"},
				{Name: "reply", Type: "s", Direction: "out"},
			},
		})
	}

	signals := make([]string, 0, len(obj.Signals))
	for member := range obj.Signals {
		signals = append(signals, member)
	}
	sort.Strings(signals)
	for _, member := range signals {
		iface.Signals = append(iface.Signals, introspect.Signal{
			Name: member,
			Args: []introspect.Arg{{Name: "event", Type: "a{sv}"}},
			Annotations: []introspect.Annotation{
				{Name: kindAnnotation, Value: string(obj.Signals[member])},
			},
		})
	}

	return iface
}

// introspectNode lists every interface served at path, sorted by name,
// after the standard Introspectable interface.
func introspectNode(path string, ifaces map[string]introspect.Interface) *introspect.Node {
	names := make([]string, 0, len(ifaces))
	for name := range ifaces {
		names = append(names, name)
	}
	sort.Strings(names)

	node := &introspect.Node{
		Name:       path,
		Interfaces: []introspect.Interface{introspect.IntrospectData},
	}
	for _, name := range names {
		node.Interfaces = append(node.Interfaces, ifaces[name])
	}
	return node
}
