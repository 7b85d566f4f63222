package chat

import (
	"github.com/marialabs/onboard/internal/domain"
	"github.com/marialabs/onboard/internal/fsm"
)

// Maria's lines. Kept in one place so copy changes never touch flow logic.
const (
	msgWelcome = "Hi, I'm Maria! I'll help you set up your AI agent in just a few steps."
	msgIntro   = "Ready to get started? It only takes a couple of minutes."
	msgEngage  = "No worries! Whenever you're ready, I'll be right here. Shall we give it a try?"
	msgReOffer = "Alright, take your time. Ready to get started?"

	msgAskName     = "Great! First things first: what's your name?"
	msgNameInvalid = "That doesn't look like a name. Letters and spaces only, please."

	msgAskUpload    = "Nice to meet you, %s! Please upload the document we need to get you set up."
	msgUploadOK     = "Got it, thanks! Now, what's your email address? I'll send you a verification code."
	msgEmailInvalid = "Hmm, that email doesn't look right. Could you double-check it?"

	msgSendingCode = "Sending a verification code to %s..."
	msgCodeSent    = "Done! Enter the 6-digit code from your inbox. Type \"resend\" if it doesn't arrive."
	msgCodeFormat  = "The code is exactly 6 digits. Give it another look?"
	msgCodeResent  = "A fresh code is on its way. Check your inbox!"

	msgVerified     = "Your email is verified. Setting up your AI agent now..."
	msgBotReady     = "All done! Your agent is ready to go. Thanks for onboarding with me!"
	msgServiceError = "Sorry, something went wrong on my end. Please try that again."
	msgResetNotice  = "It looks like your session expired or was already completed, so I've started a fresh one. Let's take it from the top!"
)

// introButtons are offered with the initial proceed/decline prompt.
var introButtons = []domain.Button{
	{Label: "Yes, let's do it", Value: string(fsm.EventAcceptIntro)},
	{Label: "Not right now", Value: string(fsm.EventDeclineIntro)},
}

// engageButtons are offered after a decline.
var engageButtons = []domain.Button{
	{Label: "Let's go!", Value: string(fsm.EventEngageGo)},
	{Label: "Maybe later", Value: string(fsm.EventEngageLater)},
}
