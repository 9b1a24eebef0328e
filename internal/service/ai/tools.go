package ai

import (
	"fmt"

	"github.com/cloudwego/eino/schema"
)

// Command is the browser-executable outcome of a tool invocation.
type Command struct {
	Type    string
	Payload map[string]any
	// Confirmation is the human-readable reply synthesized when the
	// command is dispatched instead of a model-written answer.
	Confirmation string
}

// Tool pairs a model-facing declaration with the builder that turns raw
// arguments into a Command. Adding a UI capability means registering one
// more Tool, not editing dispatch conditionals.
type Tool struct {
	Info  *schema.ToolInfo
	Build func(args map[string]any) (Command, error)
}

// Registry holds the declared tools in registration order.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry indexes the given tools by name.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.order = append(r.order, t.Info.Name)
		r.tools[t.Info.Name] = t
	}
	return r
}

// Infos returns the declarations to bind to the model.
func (r *Registry) Infos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, r.tools[name].Info)
	}
	return infos
}

// Lookup finds a registered tool by name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// ClickButton is the tool that clicks a page button by its visible label.
func ClickButton() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "click_button",
			Desc: "Click a button on the user's webpage. Use this when the user asks you to perform an action like sending an event or clicking a button.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"button_text": {
					Type:     schema.String,
					Desc:     `The text of the button to click (e.g., "Send Test Event")`,
					Required: true,
				},
			}),
		},
		Build: func(args map[string]any) (Command, error) {
			buttonText, _ := args["button_text"].(string)
			if buttonText == "" {
				return Command{}, fmt.Errorf("click_button: missing button_text")
			}
			return Command{
				Type:         "click_button",
				Payload:      map[string]any{"button_text": buttonText},
				Confirmation: fmt.Sprintf("Done! I've clicked the %q button for you.", buttonText),
			}, nil
		},
	}
}
