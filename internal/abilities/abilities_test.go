package abilities

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"gpcam/internal/camerr"
	"gpcam/internal/model"
	"gpcam/internal/provider"
	"gpcam/internal/provider/sim"
)

func TestListSupportedModels(t *testing.T) {
	r := New(sim.NewDemo(), nil)
	names, err := r.ListSupportedModels(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 4 {
		t.Fatalf("got %d models, want 4: %v", len(names), names)
	}

	// restartable
	again, _ := r.ListSupportedModels(context.Background())
	if !reflect.DeepEqual(names, again) {
		t.Fatalf("second listing differs: %v vs %v", names, again)
	}
}

func TestListSupportedModelsProviderFailure(t *testing.T) {
	p := sim.NewDemo()
	p.Fail("abilities", provider.CodeLibrary)
	names, err := New(p, nil).ListSupportedModels(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if names == nil || len(names) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", names)
	}
	if !errors.Is(err, camerr.ErrProvider) {
		t.Fatalf("kind = %v", camerr.KindOf(err))
	}
	if camerr.CodeOf(err) != provider.CodeLibrary {
		t.Fatalf("code = %d", camerr.CodeOf(err))
	}
}

func TestAbilitiesFor(t *testing.T) {
	r := New(sim.NewDemo(), nil)
	a, err := r.AbilitiesFor(context.Background(), sim.DemoModel)
	if err != nil {
		t.Fatal(err)
	}
	if !a.SupportsThumbnail || !a.SupportsDelete || !a.SupportsUpload || !a.SupportsCaptureImage || !a.SupportsPreview {
		t.Fatalf("flags missing: %+v", a)
	}

	k, err := r.AbilitiesFor(context.Background(), "Kodak DC240")
	if err != nil {
		t.Fatal(err)
	}
	if k.SupportsUpload || k.SupportsCaptureImage {
		t.Fatalf("unexpected flags: %+v", k)
	}

	if _, err := r.AbilitiesFor(context.Background(), "No Such Cam"); !errors.Is(err, camerr.ErrUnknownModel) {
		t.Fatalf("want UnknownModel, got %v", err)
	}
}

func TestSupportedTransportsFor(t *testing.T) {
	r := New(sim.NewDemo(), nil)
	got, err := r.SupportedTransportsFor(context.Background(), "Kodak DC240")
	if err != nil {
		t.Fatal(err)
	}
	want := []model.TransportKind{model.TransportSerial, model.TransportUSB}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestRefreshPicksUpNewModels(t *testing.T) {
	p := sim.New()
	r := New(p, nil)
	names, _ := r.ListSupportedModels(context.Background())
	if len(names) != 0 {
		t.Fatalf("want empty, got %v", names)
	}
	p.AddModel(provider.ModelAbilities{Model: "Late Cam", Port: provider.PortUSB})
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	names, _ = r.ListSupportedModels(context.Background())
	if len(names) != 1 || names[0] != "Late Cam" {
		t.Fatalf("got %v", names)
	}
}

func TestSupportedPortNames(t *testing.T) {
	r := New(sim.NewDemo(), nil)
	got, err := r.SupportedPortNames(context.Background(), "Kodak DC240")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"serial", "usb"}) {
		t.Fatalf("got %v", got)
	}
	got, _ = r.SupportedPortNames(context.Background(), sim.DirectoryBrowse)
	if len(got) != 0 {
		t.Fatalf("directory browse has no ports, got %v", got)
	}
}
