package scanning

import "strings"

// openClawBots are the named bots of the OpenClaw family, matched only
// once the banner is known to come from OpenClaw.
var openClawBots = []bannerRule{
	{[]string{"clawdbot", "clawd"}, "Clawdbot (OpenClaw)"},
	{[]string{"moldbot", "mold"}, "Moldbot (OpenClaw)"},
}

var agentBannerRules = []bannerRule{
	{[]string{"claude", "anthropic"}, "Claude Code"},
	{[]string{"clawdbot", "clawd"}, "Clawdbot"},
	{[]string{"moldbot"}, "Moldbot"},
	{[]string{"ollama"}, "Ollama"},
	{[]string{"llama", "ggml"}, "Llama.cpp"},
	{[]string{"openai"}, "OpenAI API"},
	{[]string{"vllm"}, "vLLM"},
	{[]string{"text-generation"}, "TGI"},
	{[]string{"cursor"}, "Cursor"},
	{[]string{"aider"}, "Aider"},
	{[]string{"continue"}, "Continue.dev"},
	{[]string{"copilot"}, "GitHub Copilot"},
	{[]string{"codeium"}, "Codeium"},
	{[]string{"tabnine"}, "TabNine"},
}

var agentPorts = map[uint16]string{
	11434: "Ollama",
	8501:  "Aider (Streamlit)",
	18789: "OpenClaw",
	18793: "OpenClaw",
}

// DetectAgent guesses the AI or developer agent behind an open port.
// Banner fingerprints win over the port table; "" means no agent.
func DetectAgent(port uint16, banner string) string {
	if banner != "" {
		lower := strings.ToLower(banner)

		if strings.Contains(lower, "openclaw") || strings.Contains(lower, "open-claw") {
			for _, r := range openClawBots {
				if r.matches(lower) {
					return r.name
				}
			}
			return "OpenClaw"
		}

		for _, r := range agentBannerRules {
			if r.matches(lower) {
				return r.name
			}
		}
	}
	return agentPorts[port]
}
