package lexicon

// DefaultTables returns the canonical keyword tables. Arabic marker lists are
// the union of all known phrasings.
func DefaultTables() Tables {
	return Tables{
		Regions: []Place{
			{Name: "Riyadh", Aliases: []string{"الرياض"}},
			{Name: "Makkah", Aliases: []string{"Mecca", "Makkah Province", "مكة المكرمة", "مكة"}},
			{Name: "Madinah", Aliases: []string{"Medina", "Al Madinah", "المدينة المنورة"}},
			{Name: "Eastern Province", Aliases: []string{"Eastern Region", "Ash Sharqiyah", "المنطقة الشرقية", "الشرقية"}},
			{Name: "Asir", Aliases: []string{"Aseer", "عسير"}},
			{Name: "Tabuk", Aliases: []string{"تبوك"}},
			{Name: "Qassim", Aliases: []string{"Al-Qassim", "Al Qassim", "القصيم"}},
			{Name: "Ha'il", Aliases: []string{"Hail", "Hael", "حائل"}},
			{Name: "Northern Borders", Aliases: []string{"Northern Border", "الحدود الشمالية"}},
			{Name: "Jazan", Aliases: []string{"Jizan", "Gizan", "جازان"}},
			{Name: "Najran", Aliases: []string{"نجران"}},
			{Name: "Al-Bahah", Aliases: []string{"Al Bahah", "Al Baha", "Al-Baha", "الباحة"}},
			{Name: "Al-Jawf", Aliases: []string{"Al Jawf", "Al Jouf", "Al-Jouf", "الجوف"}},
		},
		Cities: []Place{
			{Name: "Riyadh", Aliases: []string{"الرياض"}},
			{Name: "Jeddah", Aliases: []string{"Jiddah", "جدة"}},
			{Name: "Mecca", Aliases: []string{"Makkah", "مكة"}},
			{Name: "Medina", Aliases: []string{"Madinah", "المدينة المنورة"}},
			{Name: "Dammam", Aliases: []string{"الدمام"}},
			{Name: "Al Khobar", Aliases: []string{"Al-Khobar", "الخبر"}},
			{Name: "Khobar"},
			{Name: "Dhahran", Aliases: []string{"الظهران"}},
			{Name: "Jubail", Aliases: []string{"الجبيل"}},
			{Name: "Yanbu", Aliases: []string{"ينبع"}},
			{Name: "Tabuk", Aliases: []string{"تبوك"}},
			{Name: "Abha", Aliases: []string{"أبها"}},
			{Name: "Khamis Mushait", Aliases: []string{"خميس مشيط"}},
			{Name: "Najran", Aliases: []string{"نجران"}},
			{Name: "Jazan", Aliases: []string{"Jizan", "جازان"}},
			{Name: "Hail", Aliases: []string{"Ha'il", "حائل"}},
			{Name: "Buraydah", Aliases: []string{"Buraidah", "بريدة"}},
			{Name: "Qatif", Aliases: []string{"القطيف"}},
			{Name: "Al Ahsa", Aliases: []string{"Al-Ahsa", "Al Hasa", "الأحساء"}},
		},
		Categories: []Category{
			{Name: "Residential", Keywords: []string{"residential", "housing", "apartment", "apartments", "villa", "villas", "homes", "سكني", "إسكان"}},
			{Name: "Commercial", Keywords: []string{"commercial", "retail", "mall", "shopping", "office", "offices", "تجاري"}},
			{Name: "Infrastructure", Keywords: []string{"infrastructure", "road", "roads", "bridge", "highway", "railway", "metro", "tunnel", "water treatment", "البنية التحتية", "طريق"}},
			{Name: "Industrial", Keywords: []string{"industrial", "factory", "plant", "manufacturing", "صناعي", "مصنع"}},
			{Name: "Mega Project", Keywords: []string{"mega", "megaproject", "giga", "giga-project", "gigaproject", "neom", "the line", "red sea", "qiddiya", "diriyah", "roshn", "نيوم", "مشروع ضخم", "القدية"}},
			{Name: "Healthcare", Keywords: []string{"hospital", "medical", "healthcare", "clinic", "مستشفى"}},
			{Name: "Education", Keywords: []string{"school", "university", "education", "campus", "مدرسة", "جامعة"}},
			{Name: "Transportation", Keywords: []string{"airport", "port", "station", "transport", "terminal", "مطار", "ميناء"}},
			{Name: "Energy", Keywords: []string{"energy", "power", "solar", "wind", "oil", "gas", "desalination", "طاقة"}},
			{Name: "Tourism", Keywords: []string{"hotel", "resort", "tourism", "سياحي", "فندق"}},
			{Name: "Sports & Entertainment", Keywords: []string{"stadium", "arena", "sports", "entertainment", "ملعب", "ترفيه"}},
			{Name: "Government", Keywords: []string{"ministry", "municipality", "government complex", "courthouse", "وزارة", "أمانة"}},
			{Name: "Mixed-Use", Keywords: []string{"mixed-use", "mixed use", "متعدد الاستخدامات"}},
		},
		CompletedMarkers: []string{
			"completed", "finished", "delivered", "inaugurated", "handed over",
			"مكتمل", "منجز", "افتتح", "افتتاح", "تم افتتاح", "تم الانتهاء", "اكتمل", "اكتمال", "تم تسليم",
		},
		CancelledMarkers: []string{
			"cancelled", "canceled", "suspended", "halted", "stopped", "scrapped", "shelved",
			"ملغي", "ملغى", "إلغاء", "تم إلغاء", "متوقف", "توقف", "تعليق المشروع", "تم تعليق",
		},
		UnderConstructionMarkers: []string{
			"under construction", "construction started", "construction began", "construction begins",
			"groundbreaking", "site work", "mobilization",
			"قيد الإنشاء", "قيد الانشاء", "تحت الإنشاء", "تحت الانشاء", "وضع حجر الأساس",
		},
		OngoingMarkers: []string{
			"ongoing", "in progress", "under development", "underway", "under way",
			"قيد التنفيذ", "تحت التنفيذ", "جاري التنفيذ",
		},
		ActiveKeywords: []string{
			"active", "started", "starts", "work began", "work begins",
			"awarded", "contract awarded", "contract signed", "commencement", "commence", "commenced",
			"نشط", "بدء التنفيذ", "بدأ التنفيذ", "بدء الأعمال", "بدأت الأعمال",
			"ترسية", "ترسية العقد", "تمت الترسية", "توقيع عقد", "تم منح",
		},
		PlanningMarkers: []string{
			"planned", "planning phase", "feasibility study", "design phase", "tender", "tendering",
			"مخطط", "قيد الدراسة", "طرح مناقصة",
		},
		AnnouncementMarkers: []string{
			"announced", "announces", "announce", "unveiled", "unveils", "launched", "launches",
			"أعلن", "أعلنت", "تعلن", "يعلن", "كشف", "إطلاق", "أطلق",
		},
		SaudiCues: []string{
			"saudi", "saudi arabia", "ksa", "riyadh", "jeddah", "mecca", "makkah", "neom",
			"السعودية", "المملكة", "الرياض", "جدة", "مكة",
		},
		Reliability: []DomainScore{
			{Domain: "spa.gov.sa", Score: 1.0},
			{Domain: "vision2030.gov.sa", Score: 1.0},
			{Domain: "neom.com", Score: 1.0},
			{Domain: "qiddiya.com", Score: 1.0},
			{Domain: "redseaglobal.com", Score: 1.0},
			{Domain: "diriyah.sa", Score: 1.0},
			{Domain: "roshn.sa", Score: 1.0},
			{Domain: "meed.com", Score: 0.9},
			{Domain: "zawya.com", Score: 0.9},
			{Domain: "constructionweekonline.com", Score: 0.9},
			{Domain: "arabianbusiness.com", Score: 0.85},
			{Domain: "saudigazette.com.sa", Score: 0.85},
			{Domain: "thenationalnews.com", Score: 0.85},
			{Domain: "arabnews.com", Score: 0.85},
			{Domain: "aleqt.com", Score: 0.85},
			{Domain: "sabq.org", Score: 0.8},
			{Domain: "okaz.com.sa", Score: 0.8},
			{Domain: "aawsat.com", Score: 0.8},
			{Domain: "almadinah.com", Score: 0.8},
			{Domain: "makkahnewspaper.com", Score: 0.8},
		},
		DefaultReliability: 0.5,
		OfficialThreshold:  0.99,
	}
}
