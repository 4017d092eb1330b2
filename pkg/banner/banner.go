package banner

import (
	"fmt"

	"dealdesk/pkg/config"
)

const banner = `
██████╗ ███████╗ █████╗ ██╗     ██████╗ ███████╗███████╗██╗  ██╗
██╔══██╗██╔════╝██╔══██╗██║     ██╔══██╗██╔════╝██╔════╝██║ ██╔╝
██║  ██║█████╗  ███████║██║     ██║  ██║█████╗  ███████╗█████╔╝
██║  ██║██╔══╝  ██╔══██║██║     ██║  ██║██╔══╝  ╚════██║██╔═██╗
██████╔╝███████╗██║  ██║███████╗██████╔╝███████╗███████║██║  ██╗
╚═════╝ ╚══════╝╚═╝  ╚═╝╚══════╝╚═════╝ ╚══════╝╚══════╝╚═╝  ╚═╝
`

// Print writes the startup banner with the effective runtime summary.
func Print(cfg *config.Config, addr, dbPath, sources, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if sources != "" {
		fmt.Printf("Config sources: %s\n", sources)
	}

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST  /v1/negotiations - Create a negotiation")
	fmt.Println("POST  /v1/negotiations/{id}/conversations - Append a message")
	fmt.Println("GET   /v1/negotiations/{id}/conversations?limit=<n>&after=<id> - Poll the conversation")
	fmt.Println("PATCH /v1/negotiations/{id}/status - Complete or cancel")
	fmt.Println("POST  /v1/contracts - Create a contract from a template")
	fmt.Println("GET   /v1/templates - List contract templates")

	fmt.Println("\n== Production? =================================================")
	be := len(cfg.Security.APIKeys.Backend)
	fe := len(cfg.Security.APIKeys.Frontend)
	ak := len(cfg.Security.APIKeys.Admin)
	if be > 0 {
		fmt.Printf("- Backend API keys: OK (%d)\n", be)
	} else {
		fmt.Println("- Backend API keys: MISSING (required for backend services)")
	}
	if fe > 0 {
		fmt.Printf("- Frontend API keys: OK (%d)\n", fe)
	} else {
		fmt.Println("- Frontend API keys: MISSING (required for client access)")
	}
	if ak > 0 {
		fmt.Printf("- Admin API keys: OK (%d)\n", ak)
	} else {
		fmt.Println("- Admin API keys: MISSING (required for admin tooling)")
	}

	if cfg.Server.TLS.CertFile != "" && cfg.Server.TLS.KeyFile != "" {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}

	if cfg.Analysis.Gemini.APIKey != "" {
		fmt.Println("- Sentiment analysis: Gemini")
	} else {
		fmt.Println("- Sentiment analysis: offline lexicon (set DEALDESK_GEMINI_API_KEY for Gemini)")
	}

	if cfg.Retention.Enabled {
		if cfg.Retention.Cron != "" {
			fmt.Printf("- Retention: enabled (cron=%s)\n", cfg.Retention.Cron)
		} else {
			fmt.Println("- Retention: enabled")
		}
	} else {
		fmt.Println("- Retention: disabled")
	}

	fmt.Println("\n== Logs: =================================================")
}
