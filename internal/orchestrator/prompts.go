package orchestrator

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/jeanpaul/gbagent/internal/config"
	"github.com/jeanpaul/gbagent/internal/memory"
)

// Tool selection system prompt. Fields: .Frame .Memory .Tools .ScreenshotCount
const toolSelectionPrompt = `You're playing Pokemon Fire Red. Frame {{.Frame}}.

MEMORY:
{{.Memory}}

Tools available:
{{.Tools}}
Respond with JSON (ONLY choose tools, no actions):
{
  "tool_calls": [{"tool": "take_screenshot"}],
  "reasoning": "why you want to see this visual information"
}

Examples:
- {"tool_calls": [{"tool": "take_screenshot"}], "reasoning": "need to see current screen"}
- {"tool_calls": [{"tool": "recall_screenshot", "number": 3}], "reasoning": "need to remember what screen 3 looked like"}
- {"tool_calls": [{"tool": "analyze_with_vision"}], "reasoning": "text description unclear, need direct vision analysis"}

SCREENSHOT SYSTEM:
- Screenshots saved as: screenshot_1.png, screenshot_2.png, etc.
- Descriptions saved as: screenshot_1.txt, screenshot_2.txt, etc.
- Current screenshot count: {{.ScreenshotCount}}

STRATEGY:
- Usually use take_screenshot to see current state
- Use recall_screenshot with a number to remember past locations/screens
- Use analyze_with_vision ONLY when text descriptions are insufficient for navigation
- You'll make gameplay decisions AFTER seeing the visual info

Focus: Choose the right tool to get visual information you need.`

// Gameplay system prompt. Fields: .Memory .Observation .Actions
const gameplayPrompt = `You are playing Pokemon Fire Red. You have memory context and current visual information.

MEMORY (your persistent scratchpad, numbered for remove/update):
{{.Memory}}
CURRENT VISUAL: {{.Observation}}

Respond with JSON:
{
    "reasoning": "what you see and your strategy",
    "actions": ["A", "UP", "UP"],
    "memory_updates": {"add": [], "remove": [], "update": {"index": 1, "content": "new content"}}
}

Legal actions: {{.Actions}}

CONTROLS:
- A: Interact/advance text/confirm (USE MOST)
- B: Cancel/back
- UP/DOWN/LEFT/RIGHT: Move (batch them: ["UP","UP","UP"])
- START: ONLY for title screen or main menu
- SELECT: Special functions
- L/R: Shoulder buttons

BATCHING: Use efficient sequences like ["UP","UP","A"] or ["A","A","A"]
MEMORY: Update your progress, Pokemon team, locations visited
TOOLS: You can use recall_screenshot(N) or analyze_with_vision() if needed

Strategy: Based on what you see, decide the best actions to progress the game.`

const visionPrompt = `Describe this Pokemon Fire Red screenshot briefly: what you see, menus, characters, dialog, battles.`

// Direct vision system prompt. Fields: .Memory .ScreenshotCount
const directVisionPrompt = `You are an AI playing Pokemon Fire Red. You have been asked to analyze the current screen directly because text descriptions were insufficient.

MEMORY CONTEXT:
{{.Memory}}

SCREENSHOT COUNT: {{.ScreenshotCount}}
FILES: Screenshots saved as screenshot_1.png, screenshot_2.png, etc. with descriptions in screenshot_1.txt, screenshot_2.txt, etc.

Provide detailed analysis focusing on:
- Exact game state (battle, menu, overworld, dialogue)
- Specific elements visible (Pokemon, NPCs, text, buttons)
- Navigation context (where you are, where you can go)
- Action recommendations based on what you see

Be specific about visual details that might not translate well to text descriptions.`

// Memory cleanup system prompt. Fields: .Memory .Count
const memoryCleanupPrompt = `You maintain the memory scratchpad of an AI playing Pokemon Fire Red. It has {{.Count}} entries, oldest first:

{{.Memory}}
Rewrite it as a shorter list:
- Merge duplicates and entries that say the same thing
- Drop progress notes that later entries supersede
- Keep the GOAL, the current progress, the team, key locations and NPCs
- Keep the most recent information last

Respond with ONLY a JSON array of strings, for example:
["GOAL: ...", "CURRENT PROGRESS: ..."]`

const (
	toolSelectionRequest = "Frame %d: What should you do? Use tools to see the game."
	gameplayRequest      = "Current screen: %s. What should you do next?"
	cleanupRequest       = "Condense the memory list now."
)

type toolSelectionData struct {
	Frame           int
	Memory          string
	Tools           string
	ScreenshotCount int
}

type gameplayData struct {
	Memory      string
	Observation string
	Actions     string
}

type directVisionData struct {
	Memory          string
	ScreenshotCount int
}

type cleanupData struct {
	Memory string
	Count  int
}

// Prompts renders the system prompts, built from the defaults above with
// any prompt pack overrides applied.
type Prompts struct {
	toolSelection *template.Template
	gameplay      *template.Template
	vision        *template.Template
	directVision  *template.Template
	memoryCleanup *template.Template
}

// DefaultPromptPack returns the built-in templates, used by
// `gbagent prompts export` as a starting point for overrides.
func DefaultPromptPack() config.PromptPack {
	return config.PromptPack{
		ToolSelection: toolSelectionPrompt,
		Gameplay:      gameplayPrompt,
		Vision:        visionPrompt,
		DirectVision:  directVisionPrompt,
		MemoryCleanup: memoryCleanupPrompt,
	}
}

// NewPrompts parses the templates. Overrides are checked against sample
// data so a bad field reference fails at startup rather than mid-game.
func NewPrompts(pack *config.PromptPack) (*Prompts, error) {
	if pack == nil {
		pack = &config.PromptPack{}
	}
	pick := func(override, def string) string {
		if strings.TrimSpace(override) != "" {
			return override
		}
		return def
	}

	p := &Prompts{}
	specs := []struct {
		name   string
		source string
		sample any
		dst    **template.Template
	}{
		{"tool_selection", pick(pack.ToolSelection, toolSelectionPrompt), toolSelectionData{}, &p.toolSelection},
		{"gameplay", pick(pack.Gameplay, gameplayPrompt), gameplayData{}, &p.gameplay},
		{"vision", pick(pack.Vision, visionPrompt), struct{}{}, &p.vision},
		{"direct_vision", pick(pack.DirectVision, directVisionPrompt), directVisionData{}, &p.directVision},
		{"memory_cleanup", pick(pack.MemoryCleanup, memoryCleanupPrompt), cleanupData{}, &p.memoryCleanup},
	}
	for _, s := range specs {
		t, err := template.New(s.name).Option("missingkey=error").Parse(s.source)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", s.name, err)
		}
		if err := t.Execute(&strings.Builder{}, s.sample); err != nil {
			return nil, fmt.Errorf("prompt %s: %w", s.name, err)
		}
		*s.dst = t
	}
	return p, nil
}

// MustPrompts returns the default prompts.
func MustPrompts() *Prompts {
	p, err := NewPrompts(nil)
	if err != nil {
		panic(err)
	}
	return p
}

func render(t *template.Template, data any) string {
	var b strings.Builder
	// every template ran against its data type in NewPrompts
	_ = t.Execute(&b, data)
	return b.String()
}

func (p *Prompts) ToolSelection(frame int, entries []string, tools string, screenshotCount int) string {
	return render(p.toolSelection, toolSelectionData{
		Frame:           frame,
		Memory:          memory.Render(entries),
		Tools:           tools,
		ScreenshotCount: screenshotCount,
	})
}

func (p *Prompts) ToolSelectionRequest(frame int) string {
	return fmt.Sprintf(toolSelectionRequest, frame)
}

func (p *Prompts) Gameplay(entries []string, observation string) string {
	return render(p.gameplay, gameplayData{
		Memory:      memory.Numbered(entries),
		Observation: observation,
		Actions:     legalActions(),
	})
}

func (p *Prompts) GameplayRequest(observation string) string {
	return fmt.Sprintf(gameplayRequest, observation)
}

// Vision implements tools.Prompter.
func (p *Prompts) Vision() string {
	return render(p.vision, struct{}{})
}

// DirectVision implements tools.Prompter.
func (p *Prompts) DirectVision(entries []string, screenshotCount int) string {
	return render(p.directVision, directVisionData{
		Memory:          memory.Render(entries),
		ScreenshotCount: screenshotCount,
	})
}

func (p *Prompts) MemoryCleanup(entries []string) string {
	return render(p.memoryCleanup, cleanupData{
		Memory: memory.Numbered(entries),
		Count:  len(entries),
	})
}
