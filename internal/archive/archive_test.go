package archive

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildAndRead(t *testing.T) {
	names := []string{"MCS2022/mcs2022-coppe_world.csv", "readme.txt"}
	arc, err := Build("world.zip", names, map[string][]byte{
		names[0]: []byte("Country,prod_t_2020\nChile,100\n"),
		names[1]: []byte("hello"),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	members, err := arc.Members()
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if diff := cmp.Diff(names, members); diff != "" {
		t.Errorf("members (-want +got):\n%s", diff)
	}

	data, err := arc.ReadMember("readme.txt")
	if err != nil {
		t.Fatalf("ReadMember: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("got %q", data)
	}

	if _, err := arc.Open("absent.csv"); err == nil {
		t.Errorf("expected an error for a missing member")
	}
}

func TestCorruptArchive(t *testing.T) {
	arc := Archive{Name: "bad.zip", Data: []byte("not a zip")}
	if _, err := arc.Members(); err == nil {
		t.Errorf("expected an error")
	}
}

func TestBase(t *testing.T) {
	if got := Base("MCS2022/MCS2022-Coppe_World.csv"); got != "mcs2022-coppe_world.csv" {
		t.Errorf("Base = %q", got)
	}
}
