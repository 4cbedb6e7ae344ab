package bus

import (
	"errors"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"org.mechanix.MyGreeter", false},
		{"org.mechanix.services.Power", false},
		{"org.my-vendor.Service_1", false},
		{"org", true},
		{"", true},
		{"org..Greeter", true},
		{"org.9lives.Greeter", true},
		{"org.mechanix.My Greeter", true},
	}
	for _, tt := range tests {
		if err := ValidateName(tt.name); (err != nil) != tt.wantErr {
			t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestValidateInterface(t *testing.T) {
	if err := ValidateInterface("org.mechanix.MyGreeter"); err != nil {
		t.Errorf("ValidateInterface() error = %v", err)
	}
	if err := ValidateInterface("org.my-vendor.Greeter"); err == nil {
		t.Error("ValidateInterface() should reject '-'")
	}
}

func TestValidateMember(t *testing.T) {
	for _, ok := range []string{"host_metrics", "notification", "SayHello"} {
		if err := ValidateMember(ok); err != nil {
			t.Errorf("ValidateMember(%q) error = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "1tick", "host.metrics", "host-metrics"} {
		if err := ValidateMember(bad); err == nil {
			t.Errorf("ValidateMember(%q) should fail", bad)
		}
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"/", false},
		{"/org/mechanix/MyGreeter", false},
		{"/org/mechanix/services/Power", false},
		{"org/mechanix", true},
		{"/org/mechanix/", true},
		{"/org//mechanix", true},
		{"/org/mechanix.Greeter", true},
	}
	for _, tt := range tests {
		if err := ValidatePath(tt.path); (err != nil) != tt.wantErr {
			t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
		}
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	err := &TransportError{
		Op:      "emit",
		Binding: Binding{Path: "/org/mechanix/MyGreeter", Interface: "org.mechanix.MyGreeter", Member: "host_metrics"},
		Err:     ErrClosed,
	}
	if !errors.Is(err, ErrClosed) {
		t.Error("TransportError should unwrap to ErrClosed")
	}
	want := "emit /org/mechanix/MyGreeter:org.mechanix.MyGreeter.host_metrics: bus connection closed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
