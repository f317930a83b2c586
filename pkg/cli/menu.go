package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/spf13/cobra"
)

type menuItem struct {
	label   string
	command string
	// prompt collects positional arguments and flags before the command runs.
	prompt func(sub *cobra.Command) ([]string, error)
}

const menuExit = "Exit"

var menuItems = []menuItem{
	{label: "Create application", command: "create-application"},
	{label: "Create environment", command: "create-environment"},
	{label: "Create connectors, rulesets and profile jobs", command: "create-connectors"},
	{label: "Create ALL", command: "create-all"},
	{label: "Delete environment", command: "delete-environment", prompt: promptDeleteEnvironment},
	{label: "Delete application", command: "delete-application", prompt: promptName("Application name")},
	{label: "List applications", command: "list-applications"},
	{label: "List environments", command: "list-environments"},
	{label: "List profile sets", command: "list-profile-sets"},
	{label: "List schemas", command: "list-schemas"},
	{label: "Run profile jobs", command: "run-profile-jobs"},
}

// runMenu loops over the interactive menu until the user exits.
func runMenu(root *cobra.Command, a *app) error {
	options := make([]string, 0, len(menuItems)+1)
	for _, item := range menuItems {
		options = append(options, item.label)
	}
	options = append(options, menuExit)

	for {
		choice := ""
		err := survey.AskOne(&survey.Select{
			Message:  "Choose an operation:",
			Options:  options,
			PageSize: len(options),
		}, &choice)
		if errors.Is(err, terminal.InterruptErr) || choice == menuExit {
			return nil
		}
		if err != nil {
			return err
		}

		item := findMenuItem(choice)
		if item.command == "run-profile-jobs" {
			if err := runJobsFromMenu(a); err != nil && !errors.Is(err, errPartial) {
				printError(a.stderr, err)
			}
			a.printf("\n")
			continue
		}
		sub, _, err := root.Find([]string{item.command})
		if err != nil {
			return err
		}
		args := []string{}
		if item.prompt != nil {
			if args, err = item.prompt(sub); err != nil {
				if errors.Is(err, terminal.InterruptErr) {
					continue
				}
				printError(a.stderr, err)
				continue
			}
		}
		if err := sub.RunE(sub, args); err != nil && !errors.Is(err, errPartial) {
			printError(a.stderr, err)
		}
		a.printf("\n")
	}
}

func findMenuItem(label string) menuItem {
	for _, item := range menuItems {
		if item.label == label {
			return item
		}
	}
	return menuItem{}
}

func promptName(message string) func(*cobra.Command) ([]string, error) {
	return func(*cobra.Command) ([]string, error) {
		name := ""
		if err := survey.AskOne(&survey.Input{Message: message + ":"}, &name, survey.WithValidator(survey.Required)); err != nil {
			return nil, err
		}
		return []string{strings.TrimSpace(name)}, nil
	}
}

func promptDeleteEnvironment(sub *cobra.Command) ([]string, error) {
	args, err := promptName("Environment name")(sub)
	if err != nil {
		return nil, err
	}
	application := ""
	if err := survey.AskOne(&survey.Input{
		Message: "Application name (empty if the environment name is unique):",
	}, &application); err != nil {
		return nil, err
	}
	if err := sub.Flags().Set("application", strings.TrimSpace(application)); err != nil {
		return nil, err
	}
	return args, nil
}

func runJobsFromMenu(a *app) error {
	input := ""
	if err := survey.AskOne(&survey.Input{
		Message: "Profile job ids (comma separated, empty for all):",
	}, &input); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return nil
		}
		return err
	}
	ids, err := parseJobIDs(input)
	if err != nil {
		return err
	}
	return a.runJobs(context.Background(), ids)
}
