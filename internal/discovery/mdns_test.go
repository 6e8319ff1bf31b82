// ABOUTME: Tests for mDNS service discovery
// ABOUTME: Validates Manager creation, entry conversion, and lifecycle
package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	manager := NewManager(Config{
		ServiceName: "studio-etabla",
		Port:        8928,
	})

	if manager == nil {
		t.Fatal("NewManager returned nil")
	}
	if manager.config.ServiceName != "studio-etabla" {
		t.Errorf("Expected ServiceName 'studio-etabla', got '%s'", manager.config.ServiceName)
	}
	if manager.config.BrowseTimeout != 3*time.Second {
		t.Errorf("Expected default browse timeout 3s, got %v", manager.config.BrowseTimeout)
	}
	if manager.Players() == nil {
		t.Error("players channel should not be nil")
	}
}

func TestStopCancelsContext(t *testing.T) {
	manager := NewManager(Config{ServiceName: "test", Port: 8928})
	manager.Stop()

	select {
	case <-manager.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled after Stop")
	}

	// Stop is idempotent
	manager.Stop()
}

func TestPlayerFromEntry(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "studio-etabla._etabla._tcp.local.",
		AddrV4:     net.ParseIP("192.168.1.20"),
		Port:       8928,
		InfoFields: []string{"path=/remote"},
	}

	player := playerFromEntry(entry)
	if player == nil {
		t.Fatal("expected player")
	}
	if player.Host != "192.168.1.20" {
		t.Errorf("Expected host 192.168.1.20, got %s", player.Host)
	}
	if player.Path != "/remote" {
		t.Errorf("Expected path /remote, got %s", player.Path)
	}
	if player.Addr() != "192.168.1.20:8928" {
		t.Errorf("Expected addr 192.168.1.20:8928, got %s", player.Addr())
	}
}

func TestPlayerFromEntryDefaults(t *testing.T) {
	player := playerFromEntry(&mdns.ServiceEntry{
		Name:   "x",
		AddrV4: net.ParseIP("10.0.0.5"),
		Port:   9000,
	})
	if player == nil || player.Path != Path {
		t.Errorf("Expected default path %s, got %+v", Path, player)
	}

	if playerFromEntry(&mdns.ServiceEntry{Name: "v6-only", Port: 1}) != nil {
		t.Error("entry without IPv4 address should be skipped")
	}
	if playerFromEntry(nil) != nil {
		t.Error("nil entry should be skipped")
	}
}

func TestGetLocalIPs(t *testing.T) {
	ips, err := getLocalIPs()
	if err != nil {
		t.Fatalf("getLocalIPs failed: %v", err)
	}
	for _, ip := range ips {
		if ip.IsLoopback() {
			t.Errorf("loopback address %s should be excluded", ip)
		}
		if ip.To4() == nil {
			t.Errorf("non-IPv4 address %s should be excluded", ip)
		}
	}
}
