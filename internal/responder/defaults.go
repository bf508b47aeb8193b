package responder

import "github.com/smritistudio/chat-engine/internal/patterns"

// DefaultTable returns the stock reply templates used to seed the config
// store and as the in-memory fallback when the store is unreachable.
// Hindi and Gujarati copy was reviewed by native speakers; templates not yet
// translated fall back to English at render time.
func DefaultTable() *Table {
	return &Table{
		Templates: map[string]map[string]string{
			patterns.IntentGreeting: {
				"en": "Namaste! Welcome to {{studioName}} 📸 How can I help you today?",
				"hi": "नमस्ते! {{studioName}} में आपका स्वागत है 📸 मैं आपकी कैसे मदद कर सकता हूँ?",
				"gu": "નમસ્તે! {{studioName}} માં આપનું સ્વાગત છે 📸 હું આપની કેવી રીતે મદદ કરી શકું?",
			},
			patterns.IntentPricing: {
				"en": "Here are our photography packages with pricing. Every package can be customised to your event:",
				"hi": "हमारे फोटोग्राफी पैकेज और उनकी कीमतें यहाँ हैं। हर पैकेज आपके इवेंट के अनुसार बदला जा सकता है:",
				"gu": "અમારા ફોટોગ્રાફી પેકેજ અને તેમની કિંમતો અહીં છે. દરેક પેકેજ તમારા પ્રસંગ પ્રમાણે બદલી શકાય છે:",
			},
			patterns.IntentShowPackages: {
				"en": "These are the packages we offer. Tap one to see full details:",
				"hi": "ये हमारे पैकेज हैं। पूरी जानकारी के लिए किसी एक पर टैप करें:",
				"gu": "આ અમારા પેકેજ છે. સંપૂર્ણ વિગત માટે કોઈ એક પર ટેપ કરો:",
			},
			patterns.IntentPortfolio: {
				"en": "You can browse our recent weddings, pre-wedding shoots and portraits in the portfolio section. Want me to share a few highlights?",
				"hi": "आप हमारे हाल के वेडिंग, प्री-वेडिंग और पोर्ट्रेट काम पोर्टफोलियो सेक्शन में देख सकते हैं। क्या मैं कुछ झलकियाँ भेजूँ?",
			},
			patterns.IntentBooking: {
				"en": "Wonderful! To reserve your date I just need your name, phone number and event date. Shall we start?",
				"hi": "बहुत बढ़िया! आपकी तारीख़ बुक करने के लिए मुझे आपका नाम, फ़ोन नंबर और इवेंट की तारीख़ चाहिए। शुरू करें?",
				"gu": "સરસ! તમારી તારીખ બુક કરવા માટે મને તમારું નામ, ફોન નંબર અને પ્રસંગની તારીખ જોઈએ. શરૂ કરીએ?",
			},
			patterns.IntentContact: {
				"en": "You can reach {{studioName}} at {{phone}} or {{email}}. We usually reply within an hour during business hours.",
				"hi": "आप {{studioName}} से {{phone}} या {{email}} पर संपर्क कर सकते हैं। हम कामकाजी घंटों में आमतौर पर एक घंटे के भीतर जवाब देते हैं।",
				"gu": "તમે {{studioName}} નો {{phone}} અથવા {{email}} પર સંપર્ક કરી શકો છો.",
			},
			patterns.IntentAvailability: {
				"en": "Share your event date and I will check whether we are free. Peak wedding season fills up fast, so earlier is better!",
				"hi": "अपनी इवेंट की तारीख़ बताइए, मैं उपलब्धता देख लूँगा। शादी के सीज़न में तारीख़ें जल्दी भर जाती हैं!",
			},
			patterns.IntentLocation: {
				"en": "{{studioName}} is based in Ahmedabad and we travel across Gujarat and beyond for destination shoots.",
				"hi": "{{studioName}} अहमदाबाद में है और हम डेस्टिनेशन शूट के लिए पूरे गुजरात और बाहर भी जाते हैं।",
				"gu": "{{studioName}} અમદાવાદમાં છે અને ડેસ્ટિનેશન શૂટ માટે અમે આખા ગુજરાત અને બહાર પણ જઈએ છીએ.",
			},
			patterns.IntentThanks: {
				"en": "You're most welcome! Let me know if there is anything else I can help with 🙏",
				"hi": "आपका स्वागत है! कुछ और मदद चाहिए तो ज़रूर बताइए 🙏",
				"gu": "આપનું સ્વાગત છે! બીજી કોઈ મદદ જોઈએ તો જરૂર કહેજો 🙏",
			},
			patterns.IntentFallback: {
				"en": "I'm not sure I understood that. You can ask about our packages, pricing, availability or portfolio — or type \"contact\" to reach the team directly.",
				"hi": "माफ़ कीजिए, मैं ठीक से समझ नहीं पाया। आप पैकेज, कीमत, उपलब्धता या पोर्टफोलियो के बारे में पूछ सकते हैं।",
				"gu": "માફ કરશો, હું બરાબર સમજી શક્યો નહીં. તમે પેકેજ, કિંમત, ઉપલબ્ધતા અથવા પોર્ટફોલિયો વિશે પૂછી શકો છો.",
			},
			AbuseWarningIntent: {
				"en": "Please keep the conversation respectful. I'm happy to help with any questions about our photography services.",
				"hi": "कृपया बातचीत सम्मानजनक रखें। हमारी फोटोग्राफी सेवाओं से जुड़े किसी भी सवाल में मैं मदद के लिए तैयार हूँ।",
				"gu": "કૃપા કરીને વાતચીત સન્માનજનક રાખો. અમારી ફોટોગ્રાફી સેવાઓ વિશે કોઈપણ પ્રશ્નમાં હું મદદ કરવા તૈયાર છું.",
			},
		},
		QuickReplies: map[string]map[string][]string{
			patterns.IntentGreeting: {
				"en": {"View Packages", "Check Availability", "See Portfolio"},
				"hi": {"पैकेज देखें", "उपलब्धता जांचें", "पोर्टफोलियो देखें"},
			},
			patterns.IntentBooking: {
				"en": {"Wedding", "Pre-Wedding", "Portrait", "Event"},
			},
			patterns.IntentContact: {
				"en": {"Call Now", "WhatsApp", "Email"},
			},
		},
		Version: 0,
	}
}

// AbuseWarningIntent keys the reply used when a message is blocked. It is a
// template-only intent and never produced by the matcher.
const AbuseWarningIntent = "abuseWarning"
