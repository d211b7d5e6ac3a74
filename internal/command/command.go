// Package command parses interactive console lines into typed commands.
// Parsing is pure: no engine calls, no I/O, no logging. The run loop owns
// what each command does.
package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rbignon/ER-Route-tracker/internal/geo"
)

// Kind identifies one console command.
type Kind int

const (
	// None is a blank line; callers ignore it.
	None Kind = iota
	Start
	Stop
	Save
	Clear
	Status
	Pos
	Dist
	Debug
	RoutesList
	RoutesSearch
	RoutesShow
	RoutesDelete
	RoutesRescan
	Export
	Upload
	Quit
	Help
)

// Command is one parsed console line. Only the fields the Kind uses are
// set; everything else stays zero.
type Command struct {
	Kind Kind

	// Name is the display name for Save and the fragment for RoutesSearch.
	Name string

	// ID is the library row for RoutesShow/RoutesDelete/Export/Upload.
	ID uint

	// Path overrides the Export destination.
	Path string

	// Target coordinates for Dist.
	X, Z, Y float32
}

// Parse converts one console line into a Command. A blank line parses to
// Kind None; anything unrecognized or malformed returns an error carrying
// the expected usage.
func Parse(line string) (Command, error) {
	fields := Tokenize(line)
	if len(fields) == 0 {
		return Command{}, nil
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "start":
		return bare(Start, verb, args)
	case "stop":
		return bare(Stop, verb, args)
	case "save":
		if len(args) > 1 {
			return Command{}, fmt.Errorf("usage: save [name]")
		}
		cmd := Command{Kind: Save}
		if len(args) == 1 {
			cmd.Name = args[0]
		}
		return cmd, nil
	case "clear":
		return bare(Clear, verb, args)
	case "status":
		return bare(Status, verb, args)
	case "pos":
		return bare(Pos, verb, args)
	case "dist":
		if len(args) != 1 {
			return Command{}, fmt.Errorf("usage: dist <x,z[,y]>")
		}
		x, z, y, err := geo.ParseCoordString(args[0])
		if err != nil {
			return Command{}, fmt.Errorf("dist: %w", err)
		}
		return Command{Kind: Dist, X: x, Z: z, Y: y}, nil
	case "debug":
		return bare(Debug, verb, args)
	case "routes":
		return parseRoutes(args)
	case "export":
		if len(args) < 1 || len(args) > 2 {
			return Command{}, fmt.Errorf("usage: export <id> [path]")
		}
		id, err := parseID(args[0])
		if err != nil {
			return Command{}, fmt.Errorf("export: %w", err)
		}
		cmd := Command{Kind: Export, ID: id}
		if len(args) == 2 {
			cmd.Path = args[1]
		}
		return cmd, nil
	case "upload":
		if len(args) != 1 {
			return Command{}, fmt.Errorf("usage: upload <id>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return Command{}, fmt.Errorf("upload: %w", err)
		}
		return Command{Kind: Upload, ID: id}, nil
	case "quit", "exit":
		return bare(Quit, verb, args)
	case "help", "?":
		return bare(Help, verb, args)
	default:
		return Command{}, fmt.Errorf("unknown command %q, try help", verb)
	}
}

func parseRoutes(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{Kind: RoutesList}, nil
	}
	switch strings.ToLower(args[0]) {
	case "list":
		return bare(RoutesList, "routes list", args[1:])
	case "search":
		if len(args) != 2 {
			return Command{}, fmt.Errorf("usage: routes search <fragment>")
		}
		return Command{Kind: RoutesSearch, Name: args[1]}, nil
	case "show":
		if len(args) != 2 {
			return Command{}, fmt.Errorf("usage: routes show <id>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return Command{}, fmt.Errorf("routes show: %w", err)
		}
		return Command{Kind: RoutesShow, ID: id}, nil
	case "delete":
		if len(args) != 2 {
			return Command{}, fmt.Errorf("usage: routes delete <id>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return Command{}, fmt.Errorf("routes delete: %w", err)
		}
		return Command{Kind: RoutesDelete, ID: id}, nil
	case "rescan":
		return bare(RoutesRescan, "routes rescan", args[1:])
	default:
		return Command{}, fmt.Errorf("usage: routes [list|search <fragment>|show <id>|delete <id>|rescan]")
	}
}

func bare(kind Kind, verb string, args []string) (Command, error) {
	if len(args) != 0 {
		return Command{}, fmt.Errorf("%s takes no arguments", verb)
	}
	return Command{Kind: kind}, nil
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%q is not a route id", s)
	}
	return uint(id), nil
}

// Tokenize splits a console line into fields. Double quotes group words
// into one field and a doubled quote inside a quoted field is a literal
// quote, so names with spaces survive the console.
func Tokenize(line string) []string {
	var (
		fields  []string
		current strings.Builder
		quoted  bool
		started bool
	)
	flush := func() {
		if started {
			fields = append(fields, current.String())
			current.Reset()
			started = false
		}
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if quoted && i+1 < len(line) && line[i+1] == '"' {
				current.WriteByte('"')
				i++
				continue
			}
			quoted = !quoted
			started = true
		case (c == ' ' || c == '\t') && !quoted:
			flush()
		default:
			current.WriteByte(c)
			started = true
		}
	}
	flush()
	return fields
}
