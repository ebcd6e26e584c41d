// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// packdump renders a pack-encoded file as an indented, human-readable
// or JSON trace on stdout, one entry per field, and can re-encode a
// pack to verify its round-trip property.
package main

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"sigs.k8s.io/yaml"

	"github.com/SnellerInc/pack/pack"
)

var (
	verbose    = flag.Bool("v", false, "log verbose trace information, including Reader/Writer.Dump() state, to stderr")
	zstdFlag   = flag.Bool("z", false, "input is zstd-compressed; in -roundtrip mode, also zstd-compress the output")
	gzipFlag   = flag.Bool("gz", false, "input is gzip-compressed; in -roundtrip mode, also gzip-compress the output")
	jsonFlag   = flag.Bool("json", false, "render the dump as a JSON trace instead of an indented tree")
	roundtrip  = flag.Bool("roundtrip", false, "decode the input and re-encode it, writing the re-encoded pack to stdout and reporting whether it matched the input byte-for-byte")
	fieldsPath = flag.String("fields", "", "YAML file mapping field id to name, for annotating output")
)

func main() {
	flag.Parse()
	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(os.Stderr, "packdump["+uuid.NewString()[:8]+"] ", log.Lshortfile|log.Lmicroseconds)
	}
	if *zstdFlag && *gzipFlag {
		fmt.Fprintln(os.Stderr, "packdump: -z and -gz are mutually exclusive")
		os.Exit(1)
	}

	names, err := loadFieldNames(*fieldsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "packdump: %s\n", err)
		os.Exit(1)
	}

	out := bufio.NewWriter(os.Stdout)
	args := flag.Args()
	if len(args) == 0 {
		args = []string{"-"}
	}
	for _, arg := range args {
		var runErr error
		if *roundtrip {
			runErr = roundtripFile(out, arg, logger)
		} else {
			runErr = dumpFile(out, arg, names, logger)
		}
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "packdump: %s: %s\n", arg, runErr)
			os.Exit(1)
		}
	}
	if err := out.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadFieldNames(path string) (map[uint32]string, error) {
	if path == "" {
		return nil, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fields file: %w", err)
	}
	var names map[uint32]string
	if err := yaml.Unmarshal(buf, &names); err != nil {
		return nil, fmt.Errorf("parsing fields file: %w", err)
	}
	return names, nil
}

func openInput(arg string) (io.ReadCloser, error) {
	var in io.ReadCloser
	if arg == "-" {
		in = io.NopCloser(os.Stdin)
	} else {
		f, err := os.Open(arg)
		if err != nil {
			return nil, err
		}
		in = f
	}

	switch {
	case *zstdFlag:
		zr, err := zstd.NewReader(in)
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		return readCloserFunc{Reader: zr, closer: func() error { zr.Close(); return in.Close() }}, nil
	case *gzipFlag:
		gr, err := gzip.NewReader(in)
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return readCloserFunc{Reader: gr, closer: func() error {
			if err := gr.Close(); err != nil {
				return err
			}
			return in.Close()
		}}, nil
	default:
		return in, nil
	}
}

// readCloserFunc adapts an io.Reader plus an arbitrary close action
// (needed because zstd.Decoder.Close returns no error and gzip.Reader
// must close its own layer before the underlying file) to io.ReadCloser.
type readCloserFunc struct {
	io.Reader
	closer func() error
}

func (r readCloserFunc) Close() error { return r.closer() }

func dumpFile(out *bufio.Writer, arg string, names map[uint32]string, logger *log.Logger) error {
	in, err := openInput(arg)
	if err != nil {
		return err
	}
	defer in.Close()

	r := pack.NewReader(bufio.NewReader(in))
	logger.Printf("begin dump of %s", arg)

	if *jsonFlag {
		fields, err := jsonFields(r, names, logger)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(fields); err != nil {
			return fmt.Errorf("encoding JSON trace: %w", err)
		}
	} else if err := dumpFields(out, r, names, logger, ""); err != nil {
		return err
	}

	if err := r.End(); err != nil {
		return err
	}
	logger.Printf("finished dump of %s", arg)
	return nil
}

func roundtripFile(out *bufio.Writer, arg string, logger *log.Logger) error {
	in, err := openInput(arg)
	if err != nil {
		return err
	}
	original, err := io.ReadAll(in)
	in.Close()
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	r := pack.NewReaderBytes(original)
	w := pack.NewBufferWriter()
	logger.Printf("begin roundtrip of %s (%d bytes)", arg, len(original))
	if err := copyFields(r, w, logger); err != nil {
		return fmt.Errorf("decoding: %w", err)
	}
	if err := r.End(); err != nil {
		return fmt.Errorf("decoding: %w", err)
	}
	if err := w.End(); err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	logger.Printf("%s", w.Dump())

	reencoded := w.Bytes()
	if bytesEqual(original, reencoded) {
		fmt.Fprintf(os.Stderr, "packdump: %s: round-trip OK (%d bytes)\n", arg, len(reencoded))
	} else {
		fmt.Fprintf(os.Stderr, "packdump: %s: round-trip MISMATCH (%d bytes in, %d bytes out)\n", arg, len(original), len(reencoded))
	}

	encoded := reencoded
	switch {
	case *zstdFlag:
		zw, err := zstd.NewWriter(out)
		if err != nil {
			return fmt.Errorf("opening zstd writer: %w", err)
		}
		if _, err := zw.Write(encoded); err != nil {
			return fmt.Errorf("writing zstd output: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("closing zstd writer: %w", err)
		}
	case *gzipFlag:
		gw := gzip.NewWriter(out)
		if _, err := gw.Write(encoded); err != nil {
			return fmt.Errorf("writing gzip output: %w", err)
		}
		if err := gw.Close(); err != nil {
			return fmt.Errorf("closing gzip writer: %w", err)
		}
	default:
		if _, err := out.Write(encoded); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// copyFields reads every field from r and writes an identical copy to
// w, recursing into arrays/objects, so the emitted pack should be
// byte-identical to the input when the input was itself canonically
// encoded (spec.md's size-canonicity property).
func copyFields(r *pack.Reader, w *pack.Writer, logger *log.Logger) error {
	for {
		more, err := r.Next()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		id := r.ID()
		logger.Printf("%s", r.Dump())

		switch r.Type() {
		case pack.ArrayType:
			if err := r.BeginArray(id); err != nil {
				return err
			}
			if err := w.BeginArray(id); err != nil {
				return err
			}
			if err := copyFields(r, w, logger); err != nil {
				return err
			}
			if err := r.EndArray(); err != nil {
				return err
			}
			if err := w.EndArray(); err != nil {
				return err
			}
		case pack.ObjType:
			if err := r.BeginObject(id); err != nil {
				return err
			}
			if err := w.BeginObject(id); err != nil {
				return err
			}
			if err := copyFields(r, w, logger); err != nil {
				return err
			}
			if err := r.EndObject(); err != nil {
				return err
			}
			if err := w.EndObject(); err != nil {
				return err
			}
		case pack.BoolType:
			v, err := r.ReadBool(id)
			if err != nil {
				return err
			}
			if err := w.WriteBool(id, v); err != nil {
				return err
			}
		case pack.I32Type:
			v, err := r.ReadI32(id)
			if err != nil {
				return err
			}
			if err := w.WriteI32(id, v); err != nil {
				return err
			}
		case pack.I64Type:
			v, err := r.ReadI64(id)
			if err != nil {
				return err
			}
			if err := w.WriteI64(id, v); err != nil {
				return err
			}
		case pack.U32Type:
			v, err := r.ReadU32(id)
			if err != nil {
				return err
			}
			if err := w.WriteU32(id, v); err != nil {
				return err
			}
		case pack.U64Type:
			v, err := r.ReadU64(id)
			if err != nil {
				return err
			}
			if err := w.WriteU64(id, v); err != nil {
				return err
			}
		case pack.TimeType:
			v, err := r.ReadTime(id)
			if err != nil {
				return err
			}
			if err := w.WriteTime(id, v); err != nil {
				return err
			}
		case pack.PtrType:
			v, err := r.ReadPtr(id)
			if err != nil {
				return err
			}
			if err := w.WritePtr(id, v); err != nil {
				return err
			}
		case pack.StrType:
			v, err := r.ReadStr(id)
			if err != nil {
				return err
			}
			if err := w.WriteStr(id, v); err != nil {
				return err
			}
		case pack.BinType:
			v, err := r.ReadBin(id)
			if err != nil {
				return err
			}
			if err := w.WriteBin(id, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("id %d: unrecognized type %s", uint32(id), r.Type())
		}
	}
}

func label(id uint32, names map[uint32]string) string {
	if name, ok := names[id]; ok {
		return fmt.Sprintf("%d (%s)", id, name)
	}
	return fmt.Sprintf("%d", id)
}

func dumpFields(out *bufio.Writer, r *pack.Reader, names map[uint32]string, logger *log.Logger, indent string) error {
	for {
		more, err := r.Next()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		id := r.ID()
		typ := r.Type()
		tag := label(uint32(id), names)
		logger.Printf("%s", r.Dump())

		switch typ {
		case pack.ArrayType:
			fmt.Fprintf(out, "%sid %s: array\n", indent, tag)
			if err := r.BeginArray(id); err != nil {
				return err
			}
			if err := dumpFields(out, r, names, logger, indent+"  "); err != nil {
				return err
			}
			if err := r.EndArray(); err != nil {
				return err
			}
		case pack.ObjType:
			fmt.Fprintf(out, "%sid %s: object\n", indent, tag)
			if err := r.BeginObject(id); err != nil {
				return err
			}
			if err := dumpFields(out, r, names, logger, indent+"  "); err != nil {
				return err
			}
			if err := r.EndObject(); err != nil {
				return err
			}
		case pack.BoolType:
			v, err := r.ReadBool(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%sid %s: bool = %v\n", indent, tag, v)
		case pack.I32Type:
			v, err := r.ReadI32(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%sid %s: i32 = %d\n", indent, tag, v)
		case pack.I64Type:
			v, err := r.ReadI64(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%sid %s: i64 = %d\n", indent, tag, v)
		case pack.U32Type:
			v, err := r.ReadU32(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%sid %s: u32 = %d\n", indent, tag, v)
		case pack.U64Type:
			v, err := r.ReadU64(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%sid %s: u64 = %d\n", indent, tag, v)
		case pack.TimeType:
			v, err := r.ReadTime(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%sid %s: time = %s\n", indent, tag, v.Format("2006-01-02T15:04:05Z"))
		case pack.PtrType:
			v, err := r.ReadPtr(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%sid %s: ptr = 0x%x\n", indent, tag, v)
		case pack.StrType:
			v, err := r.ReadStr(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%sid %s: str = %q\n", indent, tag, v)
		case pack.BinType:
			v, err := r.ReadBin(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%sid %s: bin = % 02x\n", indent, tag, v)
		default:
			return fmt.Errorf("id %d: unrecognized type %s", uint32(id), typ)
		}
	}
}

// jsonField is one entry of the -json trace output.
type jsonField struct {
	ID     uint32      `json:"id"`
	Name   string      `json:"name,omitempty"`
	Type   string      `json:"type"`
	Value  interface{} `json:"value,omitempty"`
	Fields []jsonField `json:"fields,omitempty"`
}

func jsonFields(r *pack.Reader, names map[uint32]string, logger *log.Logger) ([]jsonField, error) {
	var out []jsonField
	for {
		more, err := r.Next()
		if err != nil {
			return nil, err
		}
		if !more {
			return out, nil
		}
		id := r.ID()
		typ := r.Type()
		logger.Printf("%s", r.Dump())

		f := jsonField{ID: uint32(id), Name: names[uint32(id)], Type: typ.String()}
		switch typ {
		case pack.ArrayType:
			if err := r.BeginArray(id); err != nil {
				return nil, err
			}
			children, err := jsonFields(r, names, logger)
			if err != nil {
				return nil, err
			}
			if err := r.EndArray(); err != nil {
				return nil, err
			}
			f.Fields = children
		case pack.ObjType:
			if err := r.BeginObject(id); err != nil {
				return nil, err
			}
			children, err := jsonFields(r, names, logger)
			if err != nil {
				return nil, err
			}
			if err := r.EndObject(); err != nil {
				return nil, err
			}
			f.Fields = children
		case pack.BoolType:
			v, err := r.ReadBool(id)
			if err != nil {
				return nil, err
			}
			f.Value = v
		case pack.I32Type:
			v, err := r.ReadI32(id)
			if err != nil {
				return nil, err
			}
			f.Value = v
		case pack.I64Type:
			v, err := r.ReadI64(id)
			if err != nil {
				return nil, err
			}
			f.Value = v
		case pack.U32Type:
			v, err := r.ReadU32(id)
			if err != nil {
				return nil, err
			}
			f.Value = v
		case pack.U64Type:
			v, err := r.ReadU64(id)
			if err != nil {
				return nil, err
			}
			f.Value = v
		case pack.TimeType:
			v, err := r.ReadTime(id)
			if err != nil {
				return nil, err
			}
			f.Value = v.Format("2006-01-02T15:04:05Z")
		case pack.PtrType:
			v, err := r.ReadPtr(id)
			if err != nil {
				return nil, err
			}
			f.Value = fmt.Sprintf("0x%x", v)
		case pack.StrType:
			v, err := r.ReadStr(id)
			if err != nil {
				return nil, err
			}
			f.Value = v
		case pack.BinType:
			v, err := r.ReadBin(id)
			if err != nil {
				return nil, err
			}
			f.Value = fmt.Sprintf("% 02x", v)
		default:
			return nil, fmt.Errorf("id %d: unrecognized type %s", uint32(id), typ)
		}
		out = append(out, f)
	}
}
