package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rbignon/ER-Route-tracker/internal/api"
	"github.com/rbignon/ER-Route-tracker/internal/command"
	"github.com/rbignon/ER-Route-tracker/internal/geo"
	"github.com/rbignon/ER-Route-tracker/internal/model"
	"github.com/rbignon/ER-Route-tracker/internal/route"
	"github.com/rbignon/ER-Route-tracker/pkg/core"
	"github.com/rbignon/ER-Route-tracker/pkg/streaming"
)

// executeCommand runs one parsed console command. Returns true when the
// session should end.
func executeCommand(c command.Command) bool {
	switch c.Kind {
	case command.Quit:
		return true
	case command.Help:
		printHelp()
	case command.Start:
		cmdStart()
	case command.Stop:
		cmdStop()
	case command.Save:
		cmdSave(c.Name)
	case command.Clear:
		cmdClear()
	case command.Status:
		cmdStatus()
	case command.Pos:
		cmdPos()
	case command.Dist:
		cmdDist(c)
	case command.Debug:
		cmdDebug()
	case command.RoutesList:
		cmdRoutesList()
	case command.RoutesSearch:
		cmdRoutesSearch(c.Name)
	case command.RoutesShow:
		cmdRoutesShow(c.ID)
	case command.RoutesDelete:
		cmdRoutesDelete(c.ID)
	case command.RoutesRescan:
		cmdRoutesRescan()
	case command.Export:
		cmdExport(c.ID, c.Path)
	case command.Upload:
		cmdUpload(c.ID)
	}
	return false
}

// requireEngine guards the commands that touch the attached game.
func requireEngine() bool {
	if engine == nil {
		fmt.Println("not attached to the game")
		return false
	}
	return true
}

// requireLibrary guards the commands that read or write library rows.
func requireLibrary() bool {
	if routeLibrary == nil {
		fmt.Println("route library unavailable, check the database settings")
		return false
	}
	return true
}

func cmdStart() {
	if !requireEngine() {
		return
	}
	engine.Start()
	engine.SetStatus("Recording started")
	s := sessionCtx.Get()
	dispatchEvent(streaming.TypeRouteStart, streaming.RouteStartPayload{
		SessionID:   s.ID,
		GameVersion: s.GameVersion,
		IntervalMs:  engine.IntervalMs(),
		StartedAt:   engine.SessionStart().UTC().Format(time.RFC3339),
	})
	fmt.Printf("recording every %d ms\n", engine.IntervalMs())
}

func cmdStop() {
	if !requireEngine() {
		return
	}
	if !engine.Recording() {
		fmt.Println("not recording")
		return
	}
	engine.Stop()
	engine.SetStatus("Recording stopped")
	fmt.Printf("stopped with %d points\n", engine.PointCount())
}

func cmdSave(name string) {
	if !requireEngine() {
		return
	}
	points := engine.Points()
	path, err := routeSaver.SaveAs(points, engine.IntervalMs(), name)
	if err != nil {
		if errors.Is(err, core.ErrEmptyRoute) {
			fmt.Println("nothing to save")
		} else {
			fmt.Printf("save failed: %v\n", err)
		}
		return
	}
	fmt.Printf("saved %d points to %s\n", len(points), path)

	doc, err := route.Load(path)
	if err != nil {
		Logger.Error("Saved document failed to load back", "error", err, "path", path)
		return
	}
	engine.NoteSaved(doc.Name)
	engine.SetStatus(fmt.Sprintf("Saved %s", doc.Name))

	if routeLibrary != nil {
		s := sessionCtx.Get()
		if _, err := routeLibrary.Index(doc, path, s.ID, s.GameVersion); err != nil {
			Logger.Error("Failed to index the saved route", "error", err, "path", path)
		}
	}
	dispatchEvent(streaming.TypeRouteSaved, streaming.RouteSavedPayload{
		SessionID:    sessionCtx.Get().ID,
		Name:         doc.Name,
		PointCount:   doc.PointCount,
		DurationSecs: doc.DurationSecs,
	})

	if OTelProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := OTelProvider.Flush(ctx); err != nil {
			Logger.Warn("Telemetry flush after save failed", "error", err)
		}
		cancel()
	}
}

func cmdClear() {
	if !requireEngine() {
		return
	}
	if err := engine.Clear(); err != nil {
		fmt.Println("stop the recording first")
		return
	}
	fmt.Println("trajectory cleared")
}

func cmdStatus() {
	if !requireEngine() {
		return
	}
	s := sessionCtx.Get()
	fmt.Printf("state:    %s\n", engine.State())
	fmt.Printf("points:   %d (every %d ms)\n", engine.PointCount(), engine.IntervalMs())
	fmt.Printf("deaths:   %d\n", engine.Deaths())
	fmt.Printf("igt:      %s\n", igtString(engine.IGT()))
	fmt.Printf("session:  %s (%s pid %d, version %s)\n", s.ID, s.ProcessName, s.PID, s.GameVersion)
	if text, ok := engine.Status(); ok {
		fmt.Printf("note:     %s\n", text)
	}
}

// igtString renders the in-game timer, which the client keeps in
// milliseconds.
func igtString(ms uint32) string {
	return (time.Duration(ms) * time.Millisecond).Truncate(time.Second).String()
}

func cmdPos() {
	if !requireEngine() {
		return
	}
	pos, ok := engine.CurrentPosition()
	if !ok {
		fmt.Println("position unavailable, is a world loaded?")
		return
	}
	fmt.Printf("map:     %s (%#08x)\n", pos.MapID, uint32(pos.MapID))
	fmt.Printf("local:   %.3f  %.3f  %.3f\n", pos.Local[0], pos.Local[1], pos.Local[2])
	if pos.Converted {
		fmt.Printf("global:  %.3f  %.3f  %.3f\n", pos.Global[0], pos.Global[1], pos.Global[2])
	} else {
		fmt.Printf("global:  %.3f  %.3f  %.3f (no anchor, tile-local)\n",
			pos.Global[0], pos.Global[1], pos.Global[2])
	}
	fmt.Printf("torrent: %v\n", pos.OnTorrent)
}

func cmdDist(c command.Command) {
	if !requireEngine() {
		return
	}
	pos, ok := engine.CurrentPosition()
	if !ok {
		fmt.Println("position unavailable, is a world loaded?")
		return
	}
	d := geo.Distance2D(pos.Global[0], pos.Global[2], c.X, c.Z)
	fmt.Printf("%.1f m from (%.1f, %.1f) to (%.1f, %.1f)\n",
		d, pos.Global[0], pos.Global[2], c.X, c.Z)
}

func cmdDebug() {
	if !requireEngine() {
		return
	}
	out, err := json.MarshalIndent(engine.TorrentDebug(), "", "  ")
	if err != nil {
		fmt.Printf("debug failed: %v\n", err)
		return
	}
	fmt.Println(string(out))
}

func cmdRoutesList() {
	if !requireLibrary() {
		return
	}
	rows, err := routeLibrary.List(20)
	if err != nil {
		fmt.Printf("list failed: %v\n", err)
		return
	}
	if len(rows) == 0 {
		fmt.Println("no routes in the library, try 'routes rescan'")
		return
	}
	printRouteRows(rows)
}

func cmdRoutesSearch(fragment string) {
	if !requireLibrary() {
		return
	}
	rows, err := routeLibrary.Search(fragment)
	if err != nil {
		fmt.Printf("search failed: %v\n", err)
		return
	}
	if len(rows) == 0 {
		fmt.Printf("no route matches %q\n", fragment)
		return
	}
	printRouteRows(rows)
}

func printRouteRows(rows []model.Route) {
	for _, r := range rows {
		fmt.Printf("%4d  %-32s  %6d pts  %8.1fs  %s\n",
			r.ID, r.Name, r.PointCount, r.DurationSecs, r.RecordedAt.Format("2006-01-02 15:04"))
	}
}

func cmdRoutesShow(id uint) {
	if !requireLibrary() {
		return
	}
	doc, err := routeLibrary.Get(id)
	if err != nil {
		fmt.Printf("show failed: %v\n", err)
		return
	}
	fmt.Printf("name:      %s\n", doc.Name)
	fmt.Printf("recorded:  %s\n", doc.RecordedAt)
	fmt.Printf("duration:  %.1fs over %d points (every %d ms)\n",
		doc.DurationSecs, doc.PointCount, doc.IntervalMs)
	if n := len(doc.Points); n > 0 {
		first, last := doc.Points[0], doc.Points[n-1]
		fmt.Printf("start:     %.1f %.1f %.1f (%s)\n",
			first.GlobalX, first.GlobalY, first.GlobalZ, first.MapIDStr)
		fmt.Printf("end:       %.1f %.1f %.1f (%s)\n",
			last.GlobalX, last.GlobalY, last.GlobalZ, last.MapIDStr)
	}
}

func cmdRoutesDelete(id uint) {
	if !requireLibrary() {
		return
	}
	if err := routeLibrary.Delete(id); err != nil {
		fmt.Printf("delete failed: %v\n", err)
		return
	}
	fmt.Printf("route %d removed from the library, the document stays on disk\n", id)
}

func cmdRoutesRescan() {
	if !requireLibrary() {
		return
	}
	added, err := routeLibrary.Rescan(routeSaver.Dir())
	if err != nil {
		fmt.Printf("rescan failed: %v\n", err)
		return
	}
	fmt.Printf("indexed %d new routes from %s\n", added, routeSaver.Dir())
}

func cmdExport(id uint, path string) {
	if !requireLibrary() {
		return
	}
	doc, err := routeLibrary.Get(id)
	if err != nil {
		fmt.Printf("export failed: %v\n", err)
		return
	}
	data, err := geo.RouteGeoJSON(doc)
	if err != nil {
		fmt.Printf("export failed: %v\n", err)
		return
	}
	if path == "" {
		path = fmt.Sprintf("route_%d.geojson", id)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		fmt.Printf("export failed: %v\n", err)
		return
	}
	fmt.Printf("wrote %s\n", path)
}

func cmdUpload(id uint) {
	if apiClient == nil {
		fmt.Println("route sharing is disabled, set api.enabled in the config")
		return
	}
	if !requireLibrary() {
		return
	}
	row, err := routeLibrary.Row(id)
	if err != nil {
		fmt.Printf("upload failed: %v\n", err)
		return
	}
	err = apiClient.Upload(row.FilePath, api.UploadMetadata{
		Name:         row.Name,
		DurationSecs: row.DurationSecs,
		PointCount:   row.PointCount,
		GameVersion:  row.GameVersion,
	})
	if err != nil {
		fmt.Printf("upload failed: %v\n", err)
		return
	}
	fmt.Printf("uploaded %q\n", row.Name)
}

func printHelp() {
	fmt.Print(`commands:
  start                      begin a new recording (restarts a running one)
  stop                       stop recording, the trajectory stays in memory
  save [name]                write the trajectory to the routes folder
  clear                      discard the trajectory (idle only)
  status                     recording state and session counters
  pos                        current player position
  dist <x,z[,y]>             2D distance from the player to a point
  debug                      mount telemetry snapshot
  routes [list]              latest library entries
  routes search <fragment>   find routes by name
  routes show <id>           route details
  routes delete <id>         drop a library entry, keep its document
  routes rescan              index new documents in the routes folder
  export <id> [path]         write a route as GeoJSON
  upload <id>                share a route through the API server
  quit                       leave (exit and Ctrl-C work too)
`)
}
