package twilio

import "encoding/xml"

const twimlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// sayVoice is the voice used for spoken intros.
const sayVoice = "alice"

type voiceResponse struct {
	XMLName xml.Name `xml:"Response"`
	Say     *say     `xml:"Say,omitempty"`
	Dial    *dial    `xml:"Dial,omitempty"`
	Hangup  *hangup  `xml:"Hangup,omitempty"`
}

type hangup struct{}

type say struct {
	Voice string `xml:"voice,attr,omitempty"`
	Text  string `xml:",chardata"`
}

type dial struct {
	Conference *conference `xml:"Conference,omitempty"`
	Number     string      `xml:"Number,omitempty"`
}

type conference struct {
	StartOnEnter bool   `xml:"startConferenceOnEnter,attr"`
	EndOnExit    bool   `xml:"endConferenceOnExit,attr"`
	Name         string `xml:",chardata"`
}

// ConnectTwiML renders call instructions that park the caller in the
// conference bridge for roomName. A non-empty intro is spoken first.
func ConnectTwiML(roomName, intro string) string {
	resp := voiceResponse{
		Dial: &dial{
			Conference: &conference{
				StartOnEnter: true,
				EndOnExit:    false,
				Name:         roomName,
			},
		},
	}
	if intro != "" {
		resp.Say = &say{Voice: sayVoice, Text: intro}
	}
	return render(resp)
}

// HangupTwiML renders call instructions that end the call, optionally
// speaking a message first. Webhooks answer with it when there is no
// session to bridge into; Twilio always needs a valid document back.
func HangupTwiML(message string) string {
	resp := voiceResponse{Hangup: &hangup{}}
	if message != "" {
		resp.Say = &say{Voice: sayVoice, Text: message}
	}
	return render(resp)
}

// TransferTwiML renders call instructions that forward the caller to
// another number, optionally speaking an intro first.
func TransferTwiML(number, intro string) string {
	resp := voiceResponse{
		Dial: &dial{Number: number},
	}
	if intro != "" {
		resp.Say = &say{Voice: sayVoice, Text: intro}
	}
	return render(resp)
}

func render(resp voiceResponse) string {
	out, err := xml.Marshal(resp)
	if err != nil {
		// The structs marshal unconditionally; this is unreachable with
		// string inputs.
		return twimlHeader + "<Response></Response>"
	}
	return twimlHeader + string(out)
}
