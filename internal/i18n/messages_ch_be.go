package i18n

// berneseGermanMessages contains all Bernese Swiss German (Bärndütsch) translations
var berneseGermanMessages = map[string]string{
	// Error messages
	"error.generic":            "Öppis isch schief gloffe. Probier's haut nomau, bitte.",
	"error.bad_request":        "Die Aafrag ha-n-i nid verstande.",
	"error.rate_limited":       "Mach chli langsamer, z'viu Aafrage.",
	"error.no_destination":     "Kei Wiedergab-Kanau gsetzt.",
	"error.empty_playlist":     "D Playliste isch läär, tue zersch öppis drzue.",
	"error.already_playing":    "Es louft scho.",
	"error.not_playing":        "Momentan louft nüt.",
	"error.seek_out_of_range":  "Die Position isch usserhaub vom Lied.",
	"error.index_out_of_range": "Das Lied git's a dere Position nid.",
	"error.resolution_failed":  "Ha nüt gfunde, wo-n-i abspile cha.",
	"error.empty_location":     "Säg mer, was i söu spile.",
	"error.stalled":            "Dr Stream het nie aagfange.",
	"error.transcoder":         "Ha dr Transcoder nid chönne starte.",
	"error.nothing_playable":   "Keis vo de Lieder i dr Playliste het funktioniert.",
	"error.destination_failed": "Ha mi nid mit em Wiedergab-Kanau chönne verbinde.",
	"error.duplicate":          "Isch scho i dr Playliste.",

	// Control confirmations
	"success.ok":              "Guet.",
	"success.track_added":     "Drzue ta #%d: %s",
	"success.track_removed":   "Usegno #%d: %s",
	"success.position_set":    "Aus nächschts: #%d %s",
	"success.playing":         "D Wiedergab louft.",
	"success.stopped":         "D Wiedergab isch gstoppt.",
	"success.next":            "Witer zum nächschte Lied.",
	"success.prev":            "Zrügg zum vorherige Lied.",
	"success.paused":          "Pouse.",
	"success.resumed":         "Witer geit's.",
	"success.seeked":          "Springe zu %s.",
	"success.cleared":         "%d Lieder us dr Playliste glöscht.",
	"success.destination_set": "Wiedergab-Kanau isch jetz %s.",

	// Status
	"status.nothing_playing": "Nüt am Loufe.",
	"status.playing":         "Louft #%d: %s [%s / %s]",
	"status.paused":          "Pouse #%d: %s [%s / %s]",
	"status.unknown_length":  "?",

	// Bot notifications
	"bot.now_playing":      "🎵 Jetz louft: %s",
	"bot.track_failed":     "⚠️ Ha %s nid chönne spile, s'nächschte chunnt.",
	"bot.playback_stopped": "⏹ D Wiedergab isch verbi.",
}
