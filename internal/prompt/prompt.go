// Package prompt builds the instruction sent alongside a workout log image.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// DateLayout is the date format the model is asked to echo back.
const DateLayout = "2006-01-02"

// DefaultWorkoutName is written into the "name" field of the requested JSON.
const DefaultWorkoutName = "My workout"

const workoutTemplate = `Analyze this image and return the workout data in the following JSON format:
{
    "date": "{{.Date}}",
    "name": {{.Name}},
    "exercises": [
        {
            "id": "1",
            "name": "<exercise name>",
            "sets": [
                {
                    "id": "1",
                    "reps": <number of reps>,
                    "weight": <weight used>
                },
                ...
            ]
        },
        ...
    ]
}
Include all exercises and sets visible in the image. Note you might get stuff like 3x10 format sometimes. Assume the first number is the sets, and the later the reps. In this case we would have 3 sets of 10 reps each. When no weight, use 0. ONLY return the data in JSON format. DO NOT include any other information. DO NOT WRAP IN MARKDOWN e.g. NO json` + "```[]```" + ` just the json`

var tmpl = template.Must(template.New("workout").Parse(workoutTemplate))

type data struct {
	Date string
	Name string // already JSON-quoted
}

// Build returns the prompt for a workout logged on today.
func Build(today time.Time) (string, error) {
	return BuildWithName(today, DefaultWorkoutName)
}

// BuildWithName is Build with a custom workout name. An empty name uses DefaultWorkoutName.
func BuildWithName(today time.Time, name string) (string, error) {
	if name == "" {
		name = DefaultWorkoutName
	}
	quoted, err := quote(name)
	if err != nil {
		return "", fmt.Errorf("quote workout name: %w", err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data{Date: today.Format(DateLayout), Name: quoted}); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}

// quote renders s as a JSON string literal so the example object stays valid JSON.
func quote(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
