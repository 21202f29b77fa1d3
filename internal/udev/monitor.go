package udev

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

type Event struct {
	Action  string            // add/remove/bind
	DevName string            // /dev/bus/usb/001/004
	DevPath string            // DEVPATH=...
	Props   map[string]string // key=value from udev
}

// USBID returns the vendor and product id of a usb_device event.
func (e Event) USBID() (vendor, product int, ok bool) {
	v, err1 := strconv.ParseUint(e.Props["ID_VENDOR_ID"], 16, 16)
	p, err2 := strconv.ParseUint(e.Props["ID_MODEL_ID"], 16, 16)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return int(v), int(p), true
}

// Port returns the gphoto-style port path, "usb:BBB,DDD".
func (e Event) Port() string {
	bus, dev := e.Props["BUSNUM"], e.Props["DEVNUM"]
	if bus == "" || dev == "" {
		return ""
	}
	return "usb:" + bus + "," + dev
}

// Filter selects which udev blocks become events. Empty fields match
// anything.
type Filter struct {
	Subsystem string
	DevType   string
	Actions   []string
}

// USBDevices matches whole usb devices being plugged and unplugged.
var USBDevices = Filter{
	Subsystem: "usb",
	DevType:   "usb_device",
	Actions:   []string{"add", "remove"},
}

func (f Filter) match(props map[string]string) bool {
	if f.Subsystem != "" && props["SUBSYSTEM"] != f.Subsystem {
		return false
	}
	if f.DevType != "" && props["DEVTYPE"] != f.DevType {
		return false
	}
	if len(f.Actions) == 0 {
		return true
	}
	for _, a := range f.Actions {
		if props["ACTION"] == a {
			return true
		}
	}
	return false
}

// Run listens to udev events of f.Subsystem and calls onEvent for every
// block that passes f.
func Run(ctx context.Context, f Filter, onEvent func(Event)) error {
	args := []string{"monitor", "--udev", "--property"}
	if f.Subsystem != "" {
		args = append(args, "--subsystem-match="+f.Subsystem)
	}
	cmd := exec.CommandContext(ctx, "udevadm", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	err = Parse(ctx, stdout, f, onEvent)
	_ = cmd.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Parse reads `udevadm monitor --property` output. Blocks are separated by
// blank lines.
func Parse(ctx context.Context, r io.Reader, f Filter, onEvent func(Event)) error {
	sc := bufio.NewScanner(r)
	props := map[string]string{}

	flush := func() {
		if len(props) == 0 {
			return
		}
		if f.match(props) {
			onEvent(Event{
				Action:  props["ACTION"],
				DevName: props["DEVNAME"],
				DevPath: props["DEVPATH"],
				Props:   props,
			})
		}
		props = map[string]string{}
	}

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			flush()
			continue
		}
		// header lines look like "UDEV  [1234.5] add /devices/... (usb)"
		if k, v, ok := strings.Cut(line, "="); ok && !strings.Contains(k, " ") {
			props[k] = v
		}
	}

	flush()
	return sc.Err()
}
