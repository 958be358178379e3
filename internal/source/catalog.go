package source

const (
	baseballHost = "https://baseball.yahoo.co.jp"
	soccerHost   = "https://soccer.yahoo.co.jp"
	sportsHost   = "https://sports.yahoo.co.jp"
)

func def(id, base, category string) Definition {
	return Definition{ID: id, BaseURL: base, CategoryLabel: category, RequiresScripting: true}
}

var builtin = []Definition{
	def("npb", baseballHost+"/npb/", "NPB"),
	def("mlb", baseballHost+"/mlb/", "MLB"),
	def("hsb", baseballHost+"/hsb/", "高校野球"),
	def("bbl", baseballHost+"/bbl/", "大學野球"),
	def("ipbl", baseballHost+"/ipbl/", "独立リーグ"),
	def("amateur", baseballHost+"/amateur/", "業餘棒球"),
	def("baseball_japan", baseballHost+"/japan/", "侍ジャパン"),

	def("jleague", soccerHost+"/jleague/", "Jリーグ"),
	def("ws", soccerHost+"/ws/", "海外サッカー"),
	def("soccer_japan", soccerHost+"/japan/", "サッカー代表"),
	def("youth_soccer", soccerHost+"/youth/", "高校年代"),

	def("keiba", sportsHost+"/keiba/", "競馬"),
	def("boatrace", sportsHost+"/boatrace/", "ボートレース"),
	def("sumo", sportsHost+"/sumo/", "大相撲"),
	def("figureskate", sportsHost+"/figureskate/", "フィギュア"),
	def("curling", sportsHost+"/curling/", "カーリング"),
	def("fight", sportsHost+"/fight/", "格闘技"),
	def("golf", sportsHost+"/golf/", "ゴルフ"),
	def("tennis", sportsHost+"/tennis/", "テニス"),
	def("tabletennis", sportsHost+"/tabletennis/", "卓球"),
	def("badminton", sportsHost+"/badminton/", "バドミントン"),
	def("f1", sportsHost+"/f1/", "F1"),
	def("volley", sportsHost+"/volley/", "バレーボール"),
	def("rugby", sportsHost+"/rugby/", "ラグビー"),
	def("athletic", sportsHost+"/athletic/", "陸上"),

	def("bleague", sportsHost+"/basket/bleague/", "Bリーグ"),
	def("nba", sportsHost+"/basket/nba/", "NBA"),
	def("basket_japan", sportsHost+"/basket/japan/", "バスケ代表"),
	def("youth_basket", sportsHost+"/basket/youth/", "学生バスケ"),

	def("other", sportsHost+"/other/", "他競技"),
	def("dosports", sportsHost+"/dosports/", "Doスポーツ"),
}
