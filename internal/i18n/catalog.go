package i18n

import "fmt"

// Supported locale codes, in menu order.
var Languages = []struct {
	Code  string
	Label string
}{
	{"en", "English"},
	{"ps", "پښتو"},
	{"fa", "دری"},
}

const defaultLang = "en"

// T resolves a message for the locale, falling back to English for unknown
// locales or untranslated keys.
func T(lang, key string) string {
	msgs, ok := catalog[key]
	if !ok {
		return key
	}
	if s, ok := msgs[lang]; ok {
		return s
	}
	return msgs[defaultLang]
}

// Tf resolves and formats a message.
func Tf(lang, key string, args ...interface{}) string {
	return fmt.Sprintf(T(lang, key), args...)
}

var catalog = map[string]map[string]string{
	"welcome": {
		"en": "Welcome! Please choose your language:",
		"ps": "ښه راغلاست! مهرباني وکړئ خپله ژبه وټاکئ:",
		"fa": "خوش آمدید! لطفاً زبان خود را انتخاب کنید:",
	},
	"menu": {
		"en": "Main Menu",
		"ps": "اصلي مینو",
		"fa": "منوی اصلی",
	},
	"menu_buy": {
		"en": "Buy",
		"ps": "اخیستل",
		"fa": "خرید",
	},
	"menu_register_seller": {
		"en": "Register as Seller",
		"ps": "ځان د خرڅوونکي په توګه ثبت کړئ",
		"fa": "ثبت نام فروشنده",
	},
	"menu_create_order": {
		"en": "Create Order",
		"ps": "نوی امر جوړ کړئ",
		"fa": "ایجاد سفارش",
	},
	"menu_contact_admin": {
		"en": "Contact Admin",
		"ps": "د ادمین سره اړیکه",
		"fa": "تماس با ادمین",
	},
	"contact_admin": {
		"en": "You can reach the admin at: %s",
		"ps": "تاسو کولی شئ له ادمین سره اړیکه ونیسئ: %s",
		"fa": "می‌توانید با ادمین تماس بگیرید: %s",
	},
	"cancelled": {
		"en": "Cancelled. Back to the main menu.",
		"ps": "لغوه شو. بیرته اصلي مینو ته.",
		"fa": "لغو شد. بازگشت به منوی اصلی.",
	},
	"enter_name": {
		"en": "Please send your full name:",
		"ps": "مهرباني وکړئ خپل بشپړ نوم ولیږئ:",
		"fa": "لطفاً نام کامل خود را ارسال کنید:",
	},
	"enter_contact": {
		"en": "Send your WhatsApp number:",
		"ps": "خپل واټساپ شمېره ولیږئ:",
		"fa": "شماره واتس‌اپ خود را ارسال کنید:",
	},
	"enter_payout_account": {
		"en": "Send your HesabPay ID:",
		"ps": "خپل HesabPay آی ډي ولیږئ:",
		"fa": "شناسه HesabPay خود را وارد کنید:",
	},
	"seller_submitted": {
		"en": "Your seller registration is submitted. Wait for admin approval.",
		"ps": "ستاسو غوښتنلیک ولیږل شو. د اډمین تایید ته منتظر اوسئ.",
		"fa": "درخواست شما ارسال شد. منتظر تایید ادمین باشید.",
	},
	"seller_duplicate": {
		"en": "You already have a seller registration on file.",
		"ps": "ستاسو د خرڅوونکي ثبت لا دمخه شتون لري.",
		"fa": "شما قبلاً به عنوان فروشنده ثبت نام کرده‌اید.",
	},
	"seller_approved": {
		"en": "Your seller account is approved! You can now create orders.",
		"ps": "ستاسو د پلور حساب منظور شو! اوس امرونه جوړولی شئ.",
		"fa": "حساب فروشنده شما تایید شد! اکنون می‌توانید سفارش ثبت کنید.",
	},
	"seller_rejected": {
		"en": "Your seller registration was not approved.",
		"ps": "ستاسو د خرڅوونکي ثبت منظور نشو.",
		"fa": "درخواست فروشندگی شما تایید نشد.",
	},
	"seller_not_approved": {
		"en": "Only approved sellers can create orders.",
		"ps": "یوازې منظور شوي خرڅوونکي کولی شي امرونه جوړ کړي.",
		"fa": "فقط فروشندگان تاییدشده می‌توانند سفارش ایجاد کنند.",
	},
	"admin_new_seller": {
		"en": "New seller registration:\n\nName: %s\nContact: %s\nPayout: %s",
	},
	"enter_sell_amount": {
		"en": "Enter the amount you want to sell:",
		"ps": "هغه مقدار ولیکئ چې پلورل یې غواړئ:",
		"fa": "مقدار مورد فروش را وارد کنید:",
	},
	"enter_rate": {
		"en": "Enter your rate (settlement currency per unit):",
		"ps": "خپل نرخ ولیکئ:",
		"fa": "نرخ خود را وارد کنید:",
	},
	"choose_commission": {
		"en": "Choose commission type:",
		"ps": "د کمیسیون ډول وټاکئ:",
		"fa": "نوع کمیسیون را انتخاب کنید:",
	},
	"commission_percent": {
		"en": "Percentage (%%)",
	},
	"commission_fixed": {
		"en": "Fixed",
	},
	"enter_commission_value": {
		"en": "Enter commission value:",
		"ps": "د کمیسیون مقدار ولیکئ:",
		"fa": "مقدار کمیسیون را وارد کنید:",
	},
	"enter_order_payout": {
		"en": "Enter your payout wallet address:",
		"ps": "خپل والټ پته ولیکئ:",
		"fa": "آدرس کیف پول خود را وارد کنید:",
	},
	"order_created": {
		"en": "Your order has been created and is visible to buyers.",
		"ps": "ستاسو امر جوړ شو او مشتریان یې لیدلی شي.",
		"fa": "سفارش شما ایجاد شد و برای خریداران نمایش داده می‌شود.",
	},
	"choose_order": {
		"en": "Choose a seller:",
		"ps": "پلورونکی وټاکئ:",
		"fa": "فروشنده را انتخاب کنید:",
	},
	"no_orders": {
		"en": "No sellers available now.",
		"ps": "اوس مهال هیڅ پلورونکی نشته.",
		"fa": "در حال حاضر فروشنده‌ای موجود نیست.",
	},
	"enter_buy_amount": {
		"en": "Enter the amount you want to buy:",
		"ps": "هغه مقدار ولیکئ چې اخیستل یې غواړئ:",
		"fa": "مقدار مورد خرید را وارد کنید:",
	},
	"invalid_amount": {
		"en": "That is not a valid amount. Please enter a positive number:",
		"ps": "دا سم مقدار نه دی. مهرباني وکړئ مثبت شمېره ولیکئ:",
		"fa": "مقدار معتبر نیست. لطفاً یک عدد مثبت وارد کنید:",
	},
	"insufficient_liquidity": {
		"en": "The seller does not have that much available. Enter a smaller amount:",
		"ps": "پلورونکی دومره مقدار نه لري. کوچنی مقدار ولیکئ:",
		"fa": "فروشنده این مقدار را ندارد. مقدار کمتری وارد کنید:",
	},
	"order_gone": {
		"en": "That offer is no longer available. Please choose again:",
		"ps": "دغه وړاندیز نور شتون نلري. بیا وټاکئ:",
		"fa": "آن پیشنهاد دیگر موجود نیست. دوباره انتخاب کنید:",
	},
	"invalid_selection": {
		"en": "Please pick one of the listed offers.",
		"ps": "مهرباني وکړئ له لیست څخه یو وړاندیز وټاکئ.",
		"fa": "لطفاً یکی از پیشنهادهای فهرست را انتخاب کنید.",
	},
	"enter_buy_payout": {
		"en": "Enter the wallet address where you want to receive the asset:",
		"ps": "هغه والټ پته ولیکئ چېرته چې ترلاسه کول غواړئ:",
		"fa": "آدرس کیف پولی که می‌خواهید دریافت کنید را وارد کنید:",
	},
	"payment_instructions": {
		"en": "Payment Instructions\n• Amount: %s\n• Commission: %s\n• Total: %s\n• Settlement total: %s (rate %s)\n\nAfter sending the money, upload your payment screenshot here.",
	},
	"platform_fee": {
		"en": "Platform commission: flat %s up to %s, %s%% above.",
	},
	"need_screenshot": {
		"en": "Please upload the payment screenshot as a photo.",
		"ps": "مهرباني وکړئ د تادیې سکرین شاټ د عکس په توګه پورته کړئ.",
		"fa": "لطفاً اسکرین‌شات پرداخت را به صورت عکس ارسال کنید.",
	},
	"payment_received": {
		"en": "Screenshot received. Admin will verify soon.",
		"ps": "سکرین‌شات ترلاسه شو. اډمین به ژر تایید کړي.",
		"fa": "اسکرین‌شات دریافت شد. ادمین به زودی تایید می‌کند.",
	},
	"admin_verify": {
		"en": "Buyer payment received.\n\nRequest: %s\nAmount: %s\nTotal: %s\nSeller: %d\nBuyer: %d",
	},
	"payment_confirmed": {
		"en": "Payment confirmed. The seller has been instructed to release your funds.",
		"ps": "تادیه تایید شوه. پلورونکي ته لارښوونه وشوه چې ستاسو پیسې خوشې کړي.",
		"fa": "پرداخت تایید شد. به فروشنده اعلام شد وجه شما را آزاد کند.",
	},
	"payment_rejected": {
		"en": "Your payment could not be verified and the request was rejected.",
		"ps": "ستاسو تادیه تایید نشوه او غوښتنه رد شوه.",
		"fa": "پرداخت شما تایید نشد و درخواست رد شد.",
	},
	"notify_seller_release": {
		"en": "Payment verified. Send %s to this wallet:\n%s",
		"ps": "تادیه تایید شوه. %s دې والټ ته واستوئ:\n%s",
		"fa": "پرداخت تایید شد. %s را به این کیف پول ارسال کنید:\n%s",
	},
	"offer_withdrawn": {
		"en": "The seller replaced or withdrew their offer. Your pending purchase was cancelled and the hold released.",
		"ps": "پلورونکي خپل وړاندیز بدل یا لغوه کړ. ستاسو پاتې پیرود لغوه شو او ساتل شوی مقدار خوشې شو.",
		"fa": "فروشنده پیشنهاد خود را تغییر داد یا پس گرفت. خرید در انتظار شما لغو شد و مقدار نگه‌داشته آزاد شد.",
	},
	"reservation_expired": {
		"en": "Your pending purchase expired and the hold was released.",
		"ps": "ستاسو پاتې پیرود پای ته ورسېد او ساتل شوی مقدار خوشې شو.",
		"fa": "خرید در انتظار شما منقضی شد و مقدار نگه‌داشته آزاد شد.",
	},
	"failure": {
		"en": "Something went wrong. Please try again.",
		"ps": "ستونزه رامنځته شوه. بیا هڅه وکړئ.",
		"fa": "مشکلی پیش آمد. دوباره تلاش کنید.",
	},
	"already_processed": {
		"en": "This request was already decided.",
	},
	"order_listing": {
		"en": "%s | %s available at %s",
	},
}
