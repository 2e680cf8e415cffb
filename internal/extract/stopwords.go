package extract

// stopWords are capitalized tokens and phrases that look like names or
// companies but are pronouns, greetings or discourse markers. Matching is
// case-sensitive.
var stopWords = toSet(
	// pronouns and determiners
	"I", "We", "You", "He", "She", "They", "It", "Me", "Us", "Them",
	"My", "Our", "Your", "His", "Her", "Their", "Its",
	"The", "This", "That", "These", "Those", "There", "Here", "What",
	"When", "Where", "Which", "Who", "Why", "How", "A", "An",

	// greetings and sign-offs
	"Hi", "Hello", "Hey", "Dear", "Thanks", "Thank", "Best", "Regards",
	"Cheers", "Sincerely", "Welcome", "Good", "Great", "Happy",
	"Best Regards", "Kind Regards", "Warm Regards", "Thank You",
	"Many Thanks", "Talk Soon", "All Best", "Good Morning",
	"Good Afternoon", "Hope", "Sorry", "Please",

	// discourse markers
	"Also", "Just", "So", "But", "And", "Or", "Yes", "No", "Ok", "Okay",
	"Sure", "Let", "Looking", "Maybe", "Anyway", "Then", "Now", "Next",
	"Last", "Per", "Re", "Fwd", "Fw", "Note", "Notes", "Update",

	// header words and note headings
	"From", "To", "Subject", "Date", "Sent", "Cc", "Email", "Phone",
	"Call", "Meeting", "Action", "Actions", "Item", "Items", "Todo",
	"Task", "Tasks", "Action Items", "Next Steps", "Meeting Notes",
	"Call Notes", "Follow Up",

	// departments, which follow titles ("VP of Engineering at ...")
	"Engineering", "Sales", "Marketing", "Product", "Operations",
	"Finance", "Legal", "Support", "Design", "Research", "Procurement",
	"Security", "Growth", "Partnerships",

	// calendar words
	"Today", "Tomorrow", "Yesterday", "Monday", "Tuesday", "Wednesday",
	"Thursday", "Friday", "Saturday", "Sunday", "January", "February",
	"March", "April", "May", "June", "July", "August", "September",
	"October", "November", "December",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func isStopWord(s string) bool {
	_, ok := stopWords[s]
	return ok
}
