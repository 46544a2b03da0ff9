package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Player:
		o.printPlayer(v)
	case AuthResult:
		o.printAuthResult(v)
	case Rating:
		o.printRating(v)
	case []RatingRecord:
		o.printRatingHistory(v)
	case []Queue:
		o.printQueues(v)
	case QueueEntry:
		o.printQueueEntry(v)
	case GameSession:
		o.printGameSession(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Player response type (matches API)
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsGuest     bool   `json:"is_guest"`
}

// AuthResult combines player and token
type AuthResult struct {
	Player       Player `json:"player"`
	SessionToken string `json:"session_token"`
}

// Rating response type
type Rating struct {
	Mu        float64 `json:"mu"`
	Sigma     float64 `json:"sigma"`
	Displayed float64 `json:"displayed"`
}

// RatingRecord response type
type RatingRecord struct {
	Rating    Rating    `json:"rating"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Queue response type
type Queue struct {
	ID        string `json:"id"`
	Mode      string `json:"mode"`
	TeamSize  int    `json:"team_size"`
	TeamCount int    `json:"team_count"`
	Depth     int    `json:"depth"`
}

// QueueEntry response type
type QueueEntry struct {
	EntryID      string    `json:"entry_id"`
	QueueID      string    `json:"queue_id"`
	PartyMembers []string  `json:"party_members"`
	Rating       Rating    `json:"rating"`
	JoinedAt     time.Time `json:"joined_at"`
}

// Team response type
type Team struct {
	Players []string `json:"players"`
	Rating  Rating   `json:"rating"`
}

// GameSession response type
type GameSession struct {
	ID           string     `json:"id"`
	QueueID      string     `json:"queue_id"`
	Mode         string     `json:"mode"`
	State        string     `json:"state"`
	Teams        []Team     `json:"teams"`
	Disconnected []string   `json:"disconnected,omitempty"`
	AbortReason  string     `json:"abort_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printPlayer(p Player) {
	guestStr := "no"
	if p.IsGuest {
		guestStr = "yes"
	}
	fmt.Printf("Player: %s (%s)\n", p.DisplayName, p.ID)
	fmt.Printf("Guest: %s\n", guestStr)
}

func (o *Output) printAuthResult(a AuthResult) {
	o.printPlayer(a.Player)
	fmt.Printf("Token: %s\n", a.SessionToken)
}

func (o *Output) printRating(r Rating) {
	fmt.Printf("Rating: %.0f\n", r.Displayed)
	fmt.Printf("Skill: %.1f (uncertainty %.1f)\n", r.Mu, r.Sigma)
}

func (o *Output) printRatingHistory(records []RatingRecord) {
	if len(records) == 0 {
		fmt.Println("No rated games yet")
		return
	}
	fmt.Printf("History (%d records):\n", len(records))
	for _, rec := range records {
		session := rec.SessionID
		if session == "" {
			session = "initial"
		}
		fmt.Printf("  %s  %.0f (%.1f ± %.1f)  %s\n",
			rec.CreatedAt.Format("2006-01-02 15:04"),
			rec.Rating.Displayed, rec.Rating.Mu, rec.Rating.Sigma, session)
	}
}

func (o *Output) printQueues(queues []Queue) {
	fmt.Printf("Queues (%d):\n", len(queues))
	for _, q := range queues {
		fmt.Printf("  %s: %dv%d", q.ID, q.TeamSize, q.TeamSize)
		if q.TeamCount > 2 {
			fmt.Printf(" x%d teams", q.TeamCount)
		}
		fmt.Printf(", %d searching\n", q.Depth)
	}
}

func (o *Output) printQueueEntry(e QueueEntry) {
	fmt.Printf("Searching in: %s\n", e.QueueID)
	fmt.Printf("Entry: %s\n", e.EntryID)
	fmt.Printf("Party: %s\n", strings.Join(e.PartyMembers, ", "))
	fmt.Printf("Rating: %.0f\n", e.Rating.Displayed)
	fmt.Printf("Since: %s\n", e.JoinedAt.Format("2006-01-02 15:04:05"))
}

func (o *Output) printGameSession(g GameSession) {
	fmt.Printf("Session: %s\n", g.ID)
	fmt.Printf("Queue: %s\n", g.QueueID)
	fmt.Printf("State: %s\n", g.State)
	for i, t := range g.Teams {
		fmt.Printf("Team %d (%.0f): %s\n", i+1, t.Rating.Displayed, strings.Join(t.Players, ", "))
	}
	if len(g.Disconnected) > 0 {
		fmt.Printf("Disconnected: %s\n", strings.Join(g.Disconnected, ", "))
	}
	if g.AbortReason != "" {
		fmt.Printf("Abort Reason: %s\n", g.AbortReason)
	}
	if g.ResolvedAt != nil {
		fmt.Printf("Resolved: %s\n", g.ResolvedAt.Format("2006-01-02 15:04:05"))
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status: %s\n", h.Status)
}
