package campaigns

import "fmt"

func birthdayMessage(c Candidate) string {
	name := c.Name
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Happy birthday, %s! Everyone at the clinic wishes you a wonderful year ahead. 🎂", name)
}

func retentionMessage(c Candidate) string {
	name := c.Name
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(
		"Hi %s! It has been a month since your %s. A quick follow-up visit keeps your results on track. Reply or call us to schedule.",
		name, c.Type,
	)
}

func reminderMessage(c Candidate) string {
	name := c.Name
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(
		"Hi %s, a reminder about your appointment tomorrow at %s. See you then!",
		name, c.StartsAt.UTC().Format("15:04"),
	)
}
