// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

// Package capture writes raw push frames and REST documents to a directory
// for offline diagnosis. Files are named <prefix><unix millis>, with a .json
// suffix for documents. Capture is write-only; nothing reads the files back.
package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/protocol"
)

var kindPrefixes = map[protocol.Kind]string{
	protocol.KindVEPUpdate:              "vep",
	protocol.KindVEPUpdates:             "vep",
	protocol.KindAssignedVehicles:       "asv",
	protocol.KindCommandStatusUpdates:   "acr",
	protocol.KindDebugMessage:           "deb",
	protocol.KindServiceStatusUpdates:   "ssu",
	protocol.KindUserDataUpdate:         "udu",
	protocol.KindUserPictureUpdate:      "upu",
	protocol.KindUserPINUpdate:          "pin",
	protocol.KindVehicleUpdated:         "vup",
	protocol.KindPreferredDealerChange:  "pdc",
	protocol.KindDataChangeEvent:        "dce",
	protocol.KindPendingCommandRequest:  "unk",
	protocol.KindUserVehicleAuthChanged: "unk",
}

// Prefix returns the file prefix for a push message kind.
func Prefix(k protocol.Kind) string {
	if p, ok := kindPrefixes[k]; ok {
		return p
	}
	return "unk"
}

// Writer writes capture files. A nil *Writer discards everything.
type Writer struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// New creates dir if needed and returns a Writer for it.
func New(dir string) (*Writer, error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create capture dir: %w", err)
	}
	return &Writer{dir: dir, now: time.Now}, nil
}

// Dir returns the capture directory.
func (w *Writer) Dir() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// WriteFrame stores one raw push frame under its kind prefix. Failures are
// logged, never returned, so capture cannot disturb the receive loop.
func (w *Writer) WriteFrame(kind protocol.Kind, frame []byte) {
	if w == nil {
		return
	}
	if _, err := w.write(Prefix(kind), "", frame); err != nil {
		logging.Warn().Err(err).Str("kind", kind.String()).Msg("Failed to capture frame")
	}
}

// WriteJSON stores v as an indented JSON document.
func (w *Writer) WriteJSON(prefix string, v interface{}) error {
	if w == nil {
		return nil
	}
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encode capture document: %w", err)
	}
	_, err = w.write(prefix, ".json", data)
	return err
}

// write creates a new file, adding a -N suffix when the millisecond name is taken.
func (w *Writer) write(prefix, ext string, data []byte) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	base := prefix + strconv.FormatInt(w.now().UnixMilli(), 10)
	for i := 0; i < 100; i++ {
		name := base
		if i > 0 {
			name += "-" + strconv.Itoa(i)
		}
		path := filepath.Join(w.dir, name+ext)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // path is built from a fixed prefix and a timestamp
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create capture file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("write capture file: %w", err)
		}
		return path, f.Close()
	}
	return "", fmt.Errorf("capture file name %s exhausted", base)
}
