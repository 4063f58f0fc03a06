package paths

import "testing"

func TestSessionControlPathFormat(t *testing.T) {
	got := SessionControlPath("/tmp/.galaxy/cli.", 1234, 0)
	want := "/tmp/.galaxy/cli.01234.0"
	if got != want {
		t.Errorf("SessionControlPath() = %q, want %q", got, want)
	}
}

func TestSessionControlPathAgreesAcrossCallers(t *testing.T) {
	prefix := ClientControlPrefix()
	server := SessionControlPath(prefix, 42, 3)
	client := SessionControlPath(prefix, 42, 3)
	if server != client {
		t.Errorf("server path %q and client path %q diverge for the same id", server, client)
	}
}

func TestDeliverySocketPathNeverCollidesWithControlPath(t *testing.T) {
	prefix := ClientControlPrefix()
	control := SessionControlPath(prefix, 42, 3)
	delivery := DeliverySocketPath(prefix, 42, 3)
	if control == delivery {
		t.Errorf("control path %q and delivery path %q must not collide", control, delivery)
	}
}
