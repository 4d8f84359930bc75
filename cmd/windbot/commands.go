package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the chatbot a question about turbine fault risk",
	Long: `Ask the chatbot a question about turbine fault risk.

Examples:
  windbot ask "Why might WTG-07 fail tomorrow?"
  windbot ask --user operator-12 "What happened to WTG-03 on 2024-03-15?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		user, _ := cmd.Flags().GetString("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		client.userID = user

		resp, err := client.post(cmd.Context(), "/ask", map[string]any{"question": question})
		if err != nil {
			return err
		}

		var result struct {
			Answer       string `json:"answer"`
			Explanations []struct {
				Feature   string  `json:"feature"`
				ShapValue float64 `json:"shap_value"`
			} `json:"explanations"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Answer)
		if len(result.Explanations) > 0 {
			fmt.Println()
			fmt.Println(colorize(colorBold, "Top factors:"))
			for _, e := range result.Explanations {
				fmt.Printf("  %s: %+.4f\n", e.Feature, e.ShapValue)
			}
		}
		return nil
	},
}

// --- predict ---

var predictCmd = &cobra.Command{
	Use:   "predict <turbine-id>",
	Short: "Predict fault probability for a turbine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{"turbine_id": args[0]}
		if date != "" {
			body["log_date"] = date
		}

		resp, err := client.post(cmd.Context(), "/predict_fault", body)
		if err != nil {
			return err
		}

		var result struct {
			TurbineID        string  `json:"turbine_id"`
			LogDate          string  `json:"log_date"`
			FaultProbability float64 `json:"fault_probability"`
			Explanations     []struct {
				Feature   string  `json:"feature"`
				ShapValue float64 `json:"shap_value"`
			} `json:"explanations"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printStatus("Turbine", "%s", result.TurbineID)
		printStatus("Log date", "%s", result.LogDate)
		printStatus("Fault probability", "%.2f%%", result.FaultProbability*100)
		for _, e := range result.Explanations {
			printStatus(e.Feature, "%+.4f", e.ShapValue)
		}
		return nil
	},
}

// --- chats ---

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List recent conversation turns",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		user, _ := cmd.Flags().GetString("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		client.userID = user
		if client.token == "" {
			return fmt.Errorf("chat history requires WINDBOT_API_TOKEN to be configured")
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/chats?limit=%d", limit))
		if err != nil {
			return err
		}

		var entries []struct {
			Question  string `json:"question"`
			Answer    string `json:"answer"`
			Intent    string `json:"intent"`
			CreatedAt string `json:"created_at"`
		}
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}

		for _, e := range entries {
			answer := e.Answer
			if len(answer) > 120 {
				answer = answer[:120] + "..."
			}
			fmt.Printf("%s  %s\n", colorize(colorCyan, e.CreatedAt), e.Question)
			fmt.Printf("  %s\n", answer)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().String("user", "", "user identifier for conversation history")
	predictCmd.Flags().String("date", "", "ISO date (YYYY-MM-DD); latest row is used when omitted")
	chatsCmd.Flags().Int("limit", 20, "maximum number of turns to list")
	chatsCmd.Flags().String("user", "", "user identifier to list history for")
}
