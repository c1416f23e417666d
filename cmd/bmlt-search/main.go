// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

// Command bmlt-search queries a BMLT root server for NA meetings from
// the terminal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/bmlt-enabled/bmlt-client-go/internal/config"
	"github.com/bmlt-enabled/bmlt-client-go/internal/domain/models"
	"github.com/bmlt-enabled/bmlt-client-go/internal/infrastructure/cache"
	"github.com/bmlt-enabled/bmlt-client-go/internal/infrastructure/rootserver"
	"github.com/bmlt-enabled/bmlt-client-go/internal/logging"
	"github.com/bmlt-enabled/bmlt-client-go/internal/search"
	"github.com/bmlt-enabled/bmlt-client-go/internal/service"
	"github.com/bmlt-enabled/bmlt-client-go/pkg/utils"
)

type options struct {
	configPath string
	server     string
	username   string
	password   string
	metric     bool

	searchString string
	isLocation   bool
	exact        bool
	all          bool

	latitude  float64
	longitude float64
	radius    float64

	weekdays      []int
	serviceBodies []int
	formats       []string

	startsAfter  string
	startsBefore string
	endsBefore   string
	minDuration  string
	maxDuration  string

	fieldKey   string
	fieldValue string

	unpublished bool
	showFormats bool

	showChanges bool
	meetingID   int
	fromDate    string
	toDate      string
}

func parseFlags() *options {
	opts := &options{}

	flag.StringVar(&opts.configPath, "config", config.DefaultPath(), "path to the config file")
	flag.StringVar(&opts.server, "server", "", "root server URL (overrides the config file)")
	flag.StringVar(&opts.username, "username", "", "admin login name")
	flag.StringVar(&opts.password, "password", "", "admin password")
	flag.BoolVar(&opts.metric, "metric", false, "use kilometers for the search radius")

	flag.StringVar(&opts.searchString, "search", "", "free-text search string")
	flag.BoolVar(&opts.isLocation, "location", false, "treat the search string as an address to geocode")
	flag.BoolVar(&opts.exact, "exact", false, "require an exact string match")
	flag.BoolVar(&opts.all, "all", false, "require all words to match")

	flag.Float64Var(&opts.latitude, "lat", 0, "search center latitude")
	flag.Float64Var(&opts.longitude, "long", 0, "search center longitude")
	flag.Float64Var(&opts.radius, "radius", 0, "search radius (negative for auto-radius)")

	flag.IntSliceVar(&opts.weekdays, "weekday", nil, "weekday 1-7 (Sunday=1), negative to exclude; repeatable")
	flag.IntSliceVar(&opts.serviceBodies, "service-body", nil, "service body id, negative to exclude; repeatable")
	flag.StringSliceVar(&opts.formats, "format", nil, "format code, '-' prefix to exclude; repeatable")

	flag.StringVar(&opts.startsAfter, "starts-after", "", "meetings starting at or after HH:MM")
	flag.StringVar(&opts.startsBefore, "starts-before", "", "meetings starting before HH:MM")
	flag.StringVar(&opts.endsBefore, "ends-before", "", "meetings ending by HH:MM")
	flag.StringVar(&opts.minDuration, "min-duration", "", "minimum duration HH:MM")
	flag.StringVar(&opts.maxDuration, "max-duration", "", "maximum duration HH:MM")

	flag.StringVar(&opts.fieldKey, "key", "", "search one specific meeting field")
	flag.StringVar(&opts.fieldValue, "value", "", "value for --key")

	flag.BoolVar(&opts.unpublished, "unpublished", false, "only unpublished meetings (admin login required)")
	flag.BoolVar(&opts.showFormats, "show-formats", false, "also list the formats used by the matching meetings")

	flag.BoolVar(&opts.showChanges, "changes", false, "list change records instead of meetings")
	flag.IntVar(&opts.meetingID, "meeting-id", 0, "restrict --changes to one meeting")
	flag.StringVar(&opts.fromDate, "from", "", "restrict --changes to on or after YYYY-MM-DD")
	flag.StringVar(&opts.toDate, "to", "", "restrict --changes to on or before YYYY-MM-DD")

	flag.Parse()
	return opts
}

// parseClockFlag converts an "HH:MM" flag value to seconds from
// midnight.
func parseClockFlag(value string) (int, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("bad hour in %q: %w", value, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("bad minute in %q: %w", value, err)
	}
	return hours*3600 + minutes*60, nil
}

func applyCriteria(criteria *search.Criteria, opts *options, defaultRadius float64) error {
	criteria.SearchString = opts.searchString
	criteria.SearchStringIsLocation = opts.isLocation
	criteria.SearchStringExact = opts.exact
	criteria.SearchStringAll = opts.all

	if opts.latitude != 0 || opts.longitude != 0 {
		criteria.SearchLocation = &search.LatLng{Latitude: opts.latitude, Longitude: opts.longitude}
	}
	switch {
	case opts.radius != 0:
		criteria.SearchRadius = opts.radius
	case defaultRadius != 0:
		criteria.SearchRadius = defaultRadius
	}

	for _, day := range opts.weekdays {
		state := models.Selected
		if day < 0 {
			state, day = models.Deselected, -day
		}
		if day < 1 || day > 7 {
			return fmt.Errorf("weekday %d out of range 1-7", day)
		}
		criteria.SetWeekday(search.Weekday(day), state)
	}

	for _, id := range opts.serviceBodies {
		state := models.Selected
		if id < 0 {
			state, id = models.Deselected, -id
		}
		item := criteria.ServiceBodyItem(id)
		if item == nil {
			return fmt.Errorf("unknown service body id %d", id)
		}
		item.Selection = state
	}

	for _, code := range opts.formats {
		state := models.Selected
		key := code
		if strings.HasPrefix(code, "-") {
			state, key = models.Deselected, code[1:]
		}
		item := criteria.FormatItem(key)
		if item == nil {
			return fmt.Errorf("unknown format code %q", key)
		}
		item.Selection = state
	}

	if opts.startsAfter != "" && opts.startsBefore != "" {
		return fmt.Errorf("--starts-after and --starts-before are mutually exclusive")
	}
	if opts.startsAfter != "" {
		secs, err := parseClockFlag(opts.startsAfter)
		if err != nil {
			return err
		}
		criteria.StartTimeSeconds = utils.IntPtr(secs)
	}
	if opts.startsBefore != "" {
		secs, err := parseClockFlag(opts.startsBefore)
		if err != nil {
			return err
		}
		criteria.StartTimeSeconds = utils.IntPtr(secs)
		criteria.MeetingsStartBefore = true
	}
	if opts.endsBefore != "" {
		secs, err := parseClockFlag(opts.endsBefore)
		if err != nil {
			return err
		}
		criteria.EndTimeSeconds = utils.IntPtr(secs)
	}
	if opts.minDuration != "" && opts.maxDuration != "" {
		return fmt.Errorf("--min-duration and --max-duration are mutually exclusive")
	}
	if opts.minDuration != "" {
		secs, err := parseClockFlag(opts.minDuration)
		if err != nil {
			return err
		}
		criteria.DurationSeconds = utils.IntPtr(secs)
	}
	if opts.maxDuration != "" {
		secs, err := parseClockFlag(opts.maxDuration)
		if err != nil {
			return err
		}
		criteria.DurationSeconds = utils.IntPtr(secs)
		criteria.MeetingsShorterThan = true
	}

	if opts.fieldKey != "" {
		criteria.SpecificFieldValue = &search.FieldValueQuery{
			Key:   opts.fieldKey,
			Value: opts.fieldValue,
		}
	}

	if opts.unpublished {
		criteria.PublishedStatus = search.PublishedStatusUnpublished
	}
	return nil
}

func printMeetings(result *service.SearchResult) {
	meetings := result.Meetings
	sort.Slice(meetings, func(i, j int) bool {
		a, aok := meetings[i].(interface{ TimeDayAsInteger() int })
		b, bok := meetings[j].(interface{ TimeDayAsInteger() int })
		if aok && bok {
			return a.TimeDayAsInteger() < b.TimeDayAsInteger()
		}
		return meetings[i].ID() < meetings[j].ID()
	})

	if result.FromCache {
		fmt.Fprintln(os.Stderr, "note: server unreachable, showing last cached result")
	}

	weekdayNames := []string{"", "Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}
	for _, record := range meetings {
		fields := record.Fields()
		weekday := ""
		if idx, err := strconv.Atoi(fields[models.FieldWeekday]); err == nil && idx >= 1 && idx <= 7 {
			weekday = weekdayNames[idx]
		}
		fmt.Printf("%d\t%s\t%s %s\t%s\n",
			record.ID(),
			fields[models.FieldName],
			weekday,
			strings.TrimSuffix(fields[models.FieldStartTime], ":00"),
			fields[models.FieldTown])
	}

	for _, f := range result.Formats {
		fmt.Printf("format\t%s\t%s\n", f.Key(), f.Name())
	}
}

func runChanges(ctx context.Context, session *service.Session, opts *options) error {
	query := service.ChangeQuery{MeetingID: opts.meetingID}
	if opts.fromDate != "" {
		from, err := time.Parse("2006-01-02", opts.fromDate)
		if err != nil {
			return fmt.Errorf("bad --from date: %w", err)
		}
		query.FromDate = from
	}
	if opts.toDate != "" {
		to, err := time.Parse("2006-01-02", opts.toDate)
		if err != nil {
			return fmt.Errorf("bad --to date: %w", err)
		}
		query.ToDate = to
	}

	changes, err := session.GetMeetingChanges(ctx, query)
	if err != nil {
		return err
	}
	for _, change := range changes {
		fmt.Println(change.String())
	}
	return nil
}

func run(ctx context.Context, opts *options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	serverURL := utils.CoalesceString(opts.server, cfg.RootServerURL)
	client, err := rootserver.NewClient(serverURL,
		rootserver.WithTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second))
	if err != nil {
		return err
	}

	sessionOpts := []service.Option{
		service.WithMetricUnits(opts.metric || cfg.MetricUnits),
	}
	if cfg.CachePath != "" {
		store, err := cache.NewStore(cfg.CachePath)
		if err != nil {
			slog.WarnContext(ctx, "cache unavailable, continuing without it", logging.ErrKey, err)
		} else {
			defer func() { _ = store.Close() }()
			sessionOpts = append(sessionOpts, service.WithCache(store))
		}
	}

	session := service.NewSession(client, sessionOpts...)
	if err := session.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = session.Disconnect(context.WithoutCancel(ctx)) }()

	if opts.username != "" {
		if err := session.AdminLogin(ctx, opts.username, opts.password); err != nil {
			return err
		}
	}

	if opts.showChanges {
		return runChanges(ctx, session, opts)
	}

	if err := applyCriteria(session.Criteria(), opts, cfg.DefaultRadius); err != nil {
		return err
	}

	extent := search.MeetingsOnly
	if opts.showFormats {
		extent = search.BothMeetingsAndFormats
	}

	result, err := session.PerformMeetingSearch(ctx, extent)
	if err != nil {
		return err
	}
	printMeetings(result)
	return nil
}

func main() {
	logging.InitStructureLogConfig()
	opts := parseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		slog.ErrorContext(ctx, "command failed", logging.ErrKey, err)
		os.Exit(1)
	}
}
