package railway

import (
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/internal/util"
	"github.com/hupe1980/chatloop/tool"
)

// Tool names.
const (
	SearchTrainsToolName = "search_trains_between_stations"
	SeatToolName         = "check_seat_availability"
)

// JourneyKey is the scratchpad key under which the last searched journey is
// kept so a follow-up seat check only needs the train number.
const JourneyKey = "railway.journey"

const dateLayout = "2006-01-02"

// Journey is the origin, destination and date of a trip.
type Journey struct {
	Source          string `json:"source"`
	SourceCode      string `json:"source_code"`
	Destination     string `json:"destination"`
	DestinationCode string `json:"destination_code"`
	Date            string `json:"journey_date"`
}

// JourneyQuery is the shape to extract from a free-text travel question
// before searching trains.
type JourneyQuery struct {
	JourneyDate     string `json:"journey_date" description:"date of the journey (YYYY-MM-DD)"`
	DestinationName string `json:"destination_name" description:"destination of the journey"`
	SourceName      string `json:"source_name" description:"source or origin of the journey"`
}

type searchArgs struct {
	Source      string `json:"source" description:"Source or origin of the journey (city name or station code)"`
	Destination string `json:"destination" description:"Destination of the journey (city name or station code)"`
	JourneyDate string `json:"journey_date" description:"Date of the journey"`
}

type seatArgs struct {
	TrainNumber string  `json:"train_number" description:"Number of the train"`
	Source      *string `json:"source,omitempty" description:"Source station; defaults to the last searched journey"`
	Destination *string `json:"destination,omitempty" description:"Destination station; defaults to the last searched journey"`
	JourneyDate *string `json:"journey_date,omitempty" description:"Date of the journey; defaults to the last searched journey"`
	Quota       *string `json:"quota,omitempty" description:"Booking quota (default GN)"`
	ClassType   *string `json:"class_type,omitempty" description:"Travel class such as SL, 3A, 2A (default SL)"`
}

// ToolOptions configures the railway tools.
type ToolOptions struct {
	// Now supplies the current time used in date guidance (defaults to time.Now).
	Now func() time.Time
}

// NewTools returns the train search and seat availability tools sharing client.
func NewTools(client *Client, optFns ...func(o *ToolOptions)) []tool.Tool {
	opts := ToolOptions{Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}

	dateHint := fmt.Sprintf("date format should be %d-mm-dd", opts.Now().Year())

	search := util.CreateSchema(searchArgs{})
	setDateProperty(search, "Date of the journey; "+dateHint)

	seat := util.CreateSchema(seatArgs{})
	setDateProperty(seat, "Date of the journey, defaults to the last searched journey; "+dateHint)

	return []tool.Tool{
		tool.NewFunctionTool(
			SearchTrainsToolName,
			"Use when the query is related to searching trains between stations. "+
				"The question will include source and destination cities and a journey date.",
			search,
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return searchTrains(tc, client, args)
			},
		),
		tool.NewFunctionTool(
			SeatToolName,
			"Use when you need to check the availability of seats. The question will contain the train number. "+
				"Source, destination and date default to the last train search.",
			seat,
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return checkSeats(tc, client, args)
			},
		),
	}
}

func setDateProperty(schema map[string]any, description string) {
	props := schema["properties"].(map[string]any)
	prop := props["journey_date"].(map[string]any)
	prop["description"] = description
	prop["pattern"] = `^\d{4}-\d{2}-\d{2}$`
}

func searchTrains(tc *core.ToolContext, client *Client, args map[string]any) (any, error) {
	journey, err := resolveJourney(
		stringArg(args, "source"),
		stringArg(args, "destination"),
		stringArg(args, "journey_date"),
	)
	if err != nil {
		return nil, err
	}

	data, err := client.TrainsBetweenStations(tc.Context(), journey.SourceCode, journey.DestinationCode, journey.Date)
	if err != nil {
		return nil, err
	}

	tc.SetState(JourneyKey, journey)

	return map[string]any{"journey": journey, "trains": data}, nil
}

func checkSeats(tc *core.ToolContext, client *Client, args map[string]any) (any, error) {
	var last Journey
	if v, ok := tc.GetState(JourneyKey); ok {
		last, _ = v.(Journey)
	}

	journey, err := resolveJourney(
		orDefault(stringArg(args, "source"), last.SourceCode),
		orDefault(stringArg(args, "destination"), last.DestinationCode),
		orDefault(stringArg(args, "journey_date"), last.Date),
	)
	if err != nil {
		return nil, err
	}

	q := SeatQuery{
		TrainNumber: strings.TrimSpace(stringArg(args, "train_number")),
		From:        journey.SourceCode,
		To:          journey.DestinationCode,
		Date:        journey.Date,
		Quota:       strings.ToUpper(stringArg(args, "quota")),
		Class:       strings.ToUpper(stringArg(args, "class_type")),
	}
	if q.TrainNumber == "" {
		return nil, tool.NewToolError(SeatToolName, "train_number is required", tool.CodeInvalidArguments)
	}

	data, err := client.SeatAvailability(tc.Context(), q)
	if err != nil {
		return nil, err
	}
	return map[string]any{"train_number": q.TrainNumber, "journey": journey, "availability": data}, nil
}

func resolveJourney(source, destination, date string) (Journey, error) {
	if source == "" || destination == "" || date == "" {
		return Journey{}, tool.NewToolError("railway",
			"source, destination and journey_date are required (search trains first or pass them explicitly)",
			tool.CodeInvalidArguments)
	}

	from, ok := StationCode(source)
	if !ok {
		return Journey{}, unknownStation(source)
	}
	to, ok := StationCode(destination)
	if !ok {
		return Journey{}, unknownStation(destination)
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return Journey{}, tool.NewToolError("railway",
			fmt.Sprintf("journey_date %q must be a valid YYYY-MM-DD date", date), tool.CodeInvalidArguments)
	}

	return Journey{Source: source, SourceCode: from, Destination: destination, DestinationCode: to, Date: date}, nil
}

func unknownStation(place string) error {
	te := tool.NewToolError("railway", fmt.Sprintf("no station code known for %q", place), tool.CodeInvalidArguments)
	te.Details = map[string]any{"known_cities": KnownCities()}
	return te
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
