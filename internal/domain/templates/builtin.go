package templates

import "wipetrace/internal/domain/enums"

const signature = `Sincerely,
Wipe My Trace on behalf of {{clientName}}
https://wipemytrace.com`

const identityBlock = `- Full name: {{clientName}}
- Email address: {{clientEmail}}
- Phone number: {{clientPhone}}
- Postal address: {{clientAddress}}`

var ccpaText = `Dear {{companyName}} Privacy Team,

I am writing on behalf of {{clientName}} to request the deletion of all personal information your business has collected about them, under Section 1798.105 of the California Consumer Privacy Act (CCPA).

Identifying details:
` + identityBlock + `

Under Section 1798.120, {{clientName}} also opts out of any sale or sharing of their personal information. Please instruct every service provider or third party that received this information to delete it as required by Section 1798.105(c).

If you rely on an exemption listed in Section 1798.105(d), name the specific provision in writing. A partial deletion does not satisfy this request.

Section 1798.130 gives you 45 days to respond. Please confirm completion, or send a substantiated denial, no later than {{deadline}} to {{clientEmail}}.

` + signature

var gdprText = `Dear {{companyName}} Data Protection Officer,

I am writing on behalf of {{clientName}} to request the erasure of all personal data concerning them, under Article 17 of the General Data Protection Regulation (EU) 2016/679.

Data subject details:
` + identityBlock + `

{{clientName}} withdraws any consent previously given and objects to further processing under Article 21, including processing for direct marketing and profiling. Per Article 19, please notify each recipient to whom the data was disclosed.

Article 12(3) requires you to act on this request without undue delay and within one month of receipt. Please confirm erasure, together with the list of recipients notified, by {{deadline}} to {{clientEmail}}.

If you do not comply, {{clientName}} reserves the right to lodge a complaint with the competent supervisory authority under Article 77.

` + signature

var pipedaText = `Dear {{companyName}} Privacy Officer,

I am writing on behalf of {{clientName}} to withdraw consent and request the deletion of their personal information, under Principle 4.3.8 and Principle 4.5 of Schedule 1 of the Personal Information Protection and Electronic Documents Act (PIPEDA).

Individual details:
` + identityBlock + `

Personal information that is no longer required to fulfil an identified purpose must be destroyed, erased or made anonymous. Please also tell us which third parties received this information and confirm that they have been asked to delete it.

Section 8(3) of PIPEDA requires a response within 30 days. Please reply by {{deadline}} to {{clientEmail}}.

Failure to respond may result in a complaint to the Office of the Privacy Commissioner of Canada.

` + signature

var lgpdText = `Prezados responsáveis pela proteção de dados da {{companyName}},

Escrevo em nome de {{clientName}} para solicitar a eliminação de todos os dados pessoais tratados por esta empresa, nos termos do Artigo 18, inciso VI, da Lei Geral de Proteção de Dados Pessoais (Lei nº 13.709/2018).

Dados do titular:
- Nome completo: {{clientName}}
- E-mail: {{clientEmail}}
- Telefone: {{clientPhone}}
- Endereço: {{clientAddress}}

{{clientName}} revoga qualquer consentimento anteriormente concedido. Solicitamos também a informação sobre as entidades públicas e privadas com as quais os dados foram compartilhados, conforme o Artigo 18, inciso VII.

Solicitamos a confirmação da eliminação no prazo de 15 dias, até {{deadline}}, para {{clientEmail}}.

O não atendimento poderá ser comunicado à Autoridade Nacional de Proteção de Dados (ANPD).

Atenciosamente,
Wipe My Trace em nome de {{clientName}}
https://wipemytrace.com`

var followUpText = `Dear {{companyName}},

This is a follow-up to the data deletion request sent on {{originalDate}} on behalf of {{clientName}}.

We have not received confirmation that the request was completed. Under {{jurisdiction}} you are required to respond within the statutory timeframe.

Original request:
- Subject: {{originalSubject}}
- Date sent: {{originalDate}}
- Deadline: {{deadline}}

Please confirm the deletion of all personal data, report any third-party disclosures and their deletion status, and reply to {{clientEmail}} without further delay to avoid escalation to the regulator.

` + signature

var builtins = map[enums.Jurisdiction]Content{
	enums.CCPA: {
		Subject:   "Request to Delete Personal Information under CCPA Section 1798.105",
		PlainText: ccpaText,
		Body:      textToHTML(ccpaText),
	},
	enums.GDPR: {
		Subject:   "Request for Erasure of Personal Data under GDPR Article 17",
		PlainText: gdprText,
		Body:      textToHTML(gdprText),
	},
	enums.PIPEDA: {
		Subject:   "Request to Delete Personal Information under PIPEDA",
		PlainText: pipedaText,
		Body:      textToHTML(pipedaText),
	},
	enums.LGPD: {
		Subject:   "Solicitação de Eliminação de Dados Pessoais nos termos da LGPD",
		PlainText: lgpdText,
		Body:      textToHTML(lgpdText),
	},
}

var followUp = Content{
	Subject:   "Follow-up: Data Deletion Request - {{jurisdiction}} Compliance Required",
	PlainText: followUpText,
	Body:      textToHTML(followUpText),
}

// Builtin returns the shipped letter for j. Unrecognized jurisdictions get the
// CCPA letter.
func Builtin(j enums.Jurisdiction) Content {
	if c, ok := builtins[j]; ok {
		return c
	}
	return builtins[enums.CCPA]
}

func FollowUp() Content {
	return followUp
}

// BuiltinFor picks the shipped text for a template type. Reminder and
// escalation letters reuse the jurisdiction letter.
func BuiltinFor(j enums.Jurisdiction, tt enums.TemplateType) Content {
	if tt == enums.TemplateFollowUp {
		return FollowUp()
	}
	return Builtin(j)
}
