package templates

import (
	"fmt"
	"math"
)

// CollectorNearbySubject is the subject line of the proximity email
const CollectorNearbySubject = "Collector Nearby Notification"

// VerificationCodeSubject is the subject line of the one-time code email
const VerificationCodeSubject = "Your Verification Code"

func greeting(name string) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hi %s,", name)
}

// RenderCollectorNearbyEmail returns the html and plain text bodies telling a
// resident that a collector is close to their home location
func RenderCollectorNearbyEmail(residentName, vehicleNumber string, distanceMeters float64) (string, string) {
	n := Notice{
		Subject:  CollectorNearbySubject,
		Greeting: greeting(residentName),
		Paragraphs: []string{
			fmt.Sprintf("A waste collector is nearby your location (about %d m away).", int(math.Round(distanceMeters))),
		},
		Footnote: "Please have your waste ready for pickup.",
	}
	if vehicleNumber != "" {
		n.Highlight = "Vehicle: " + vehicleNumber
	}
	return n.HTML(), n.Plain()
}

// RenderVerificationCodeEmail returns the html and plain text bodies carrying a one-time code
func RenderVerificationCodeEmail(name, code string, validMinutes int) (string, string) {
	n := Notice{
		Subject:    VerificationCodeSubject,
		Greeting:   greeting(name),
		Paragraphs: []string{"Your verification code is:"},
		Highlight:  code,
		Footnote:   fmt.Sprintf("It expires in %d minutes. If you did not try to sign in, ignore this email.", validMinutes),
	}
	return n.HTML(), n.Plain()
}
